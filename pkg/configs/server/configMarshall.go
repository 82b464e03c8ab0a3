package server

import (
	"fmt"
	"net/url"
	"time"

	"github.com/opst/modelfab/pkg/loop/recurring"
)

const (
	DefaultPort          = 8080
	DefaultSnapshotCache = 16
	DefaultPolicy        = "forever:1s"
	DefaultTimeout       = 30 * time.Second

	// DefaultResponseExpiry bounds redelivery of update outcomes to failing listeners.
	DefaultResponseExpiry = 24 * time.Hour
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/server.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of modeld.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `Config`.
type ConfigMarshall struct {
	Port          int32                     `yaml:"port,omitempty"`
	Database      string                    `yaml:"database,omitempty"`
	Seed          string                    `yaml:"seed"`
	SnapshotCache int                       `yaml:"snapshotCache,omitempty"`
	Queue         *QueueConfigMarshall      `yaml:"queue,omitempty"`
	Downstream    *DownstreamConfigMarshall `yaml:"downstream"`
	Hooks         string                    `yaml:"hooks,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 || 65535 < port {
		panic(fmt.Errorf("%s.port is out of range: %d", path, port))
	}
	cache := c.SnapshotCache
	if cache == 0 {
		cache = DefaultSnapshotCache
	}
	if cache < 0 {
		panic(fmt.Errorf("%s.snapshotCache should be positive: %d", path, cache))
	}

	q := c.Queue
	if q == nil {
		q = &QueueConfigMarshall{}
	}
	return &Config{
		port:          port,
		database:      c.Database,
		seed:          required(c.Seed, path+".seed"),
		snapshotCache: cache,
		queue:         q.trySeal(path + ".queue"),
		downstream:    nonnil(c.Downstream, path+".downstream").trySeal(path + ".downstream"),
		hooks:         c.Hooks,
	}
}

type QueueConfigMarshall struct {
	// "async" (default) or "sync"
	Mode string `yaml:"mode,omitempty"`

	// "forever[:COOLDOWN]" or "backlog"
	Policy string `yaml:"policy,omitempty"`

	// like "30s"
	Timeout string `yaml:"timeout,omitempty"`

	// like "24h". Undelivered update outcomes older than this are dropped.
	ResponseExpiry string `yaml:"responseExpiry,omitempty"`
}

func (q *QueueConfigMarshall) trySeal(path string) *QueueConfig {
	mode := Mode(q.Mode)
	switch mode {
	case "":
		mode = Async
	case Async, Sync:
	default:
		panic(fmt.Errorf("%s.mode should be one of async|sync: %s", path, q.Mode))
	}

	ps := q.Policy
	if ps == "" {
		ps = DefaultPolicy
	}
	policy, err := recurring.ParsePolicy(ps)
	if err != nil {
		panic(fmt.Errorf("%s.policy can not be parsed: %w", path, err))
	}

	timeout := DefaultTimeout
	if q.Timeout != "" {
		timeout, err = time.ParseDuration(q.Timeout)
		if err != nil {
			panic(fmt.Errorf("%s.timeout can not be parsed: %w", path, err))
		}
		if timeout <= 0 {
			panic(fmt.Errorf("%s.timeout should be positive: %s", path, q.Timeout))
		}
	}

	expiry := DefaultResponseExpiry
	if q.ResponseExpiry != "" {
		expiry, err = time.ParseDuration(q.ResponseExpiry)
		if err != nil {
			panic(fmt.Errorf("%s.responseExpiry can not be parsed: %w", path, err))
		}
		if expiry <= 0 {
			panic(fmt.Errorf("%s.responseExpiry should be positive: %s", path, q.ResponseExpiry))
		}
	}

	return &QueueConfig{mode: mode, policy: policy, timeout: timeout, responseExpiry: expiry}
}

type DownstreamConfigMarshall struct {
	Definitions string                  `yaml:"definitions"`
	Semantic    string                  `yaml:"semantic"`
	CodeList    *CodeListConfigMarshall `yaml:"codeList,omitempty"`
}

type CodeListConfigMarshall struct {
	Id                   int    `yaml:"id"`
	DescriptionAttribute string `yaml:"descriptionAttribute,omitempty"`
}

func (d *DownstreamConfigMarshall) trySeal(path string) *DownstreamConfig {
	ret := &DownstreamConfig{
		definitions: requiredURL(d.Definitions, path+".definitions"),
		semantic:    requiredURL(d.Semantic, path+".semantic"),
	}
	if d.CodeList != nil {
		ret.codeList = required(d.CodeList.Id, path+".codeList.id")
		ret.codeListDescription = d.CodeList.DescriptionAttribute
	}
	return ret
}

func requiredURL(v string, path string) *url.URL {
	u, err := url.Parse(required(v, path))
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		panic(fmt.Errorf("%s should be a http(s) URL: %s", path, v))
	}
	return u
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
