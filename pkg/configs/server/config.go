package server

import (
	"net/url"
	"time"

	"github.com/opst/modelfab/pkg/loop/recurring"
)

// Config is the sealed configuration of modeld.
//
// to get `Config` instance, use `TrySeal(*ConfigMarshall)` or `Unmarshal`.
type Config struct {
	port          int32
	database      string
	seed          string
	snapshotCache int
	queue         *QueueConfig
	downstream    *DownstreamConfig
	hooks         string
}

func (c *Config) Port() int32 {
	return c.port
}

// Connection string for database.
//
// Empty means histories and queues are kept in memory, and lost on exit.
func (c *Config) Database() string {
	return c.database
}

// Filepath of the seed model.
func (c *Config) Seed() string {
	return c.seed
}

// How many replayed versions are cached.
func (c *Config) SnapshotCache() int {
	return c.snapshotCache
}

func (c *Config) Queue() *QueueConfig {
	return c.queue
}

func (c *Config) Downstream() *DownstreamConfig {
	return c.downstream
}

// Filepath of the hook configuration. Empty when not configured.
func (c *Config) Hooks() string {
	return c.hooks
}

// Mode of request processing.
type Mode string

const (
	// requests are queued and processed by worker loops.
	Async Mode = "async"

	// requests are processed in the request handler.
	Sync Mode = "sync"
)

type QueueConfig struct {
	mode           Mode
	policy         recurring.Policy
	timeout        time.Duration
	responseExpiry time.Duration
}

func (q *QueueConfig) Mode() Mode {
	return q.mode
}

// Policy of worker loops.
func (q *QueueConfig) Policy() recurring.Policy {
	return q.policy
}

// Timeout of each iteration of worker loops.
func (q *QueueConfig) Timeout() time.Duration {
	return q.timeout
}

// How long outcomes of updates are redelivered to failing listeners.
func (q *QueueConfig) ResponseExpiry() time.Duration {
	return q.responseExpiry
}

type DownstreamConfig struct {
	definitions         *url.URL
	semantic            *url.URL
	codeList            int
	codeListDescription string
}

// Base URL of the definition repository.
func (d *DownstreamConfig) Definitions() *url.URL {
	return d.definitions
}

// Base URL of the semantic triple store.
func (d *DownstreamConfig) Semantic() *url.URL {
	return d.semantic
}

// Id of the code-list where definitions are registered. 0 when disabled.
func (d *DownstreamConfig) CodeList() int {
	return d.codeList
}

// Definition attribute used as descriptions of the code value.
func (d *DownstreamConfig) CodeListDescription() string {
	return d.codeListDescription
}
