// Package inmemory is a queue kept in process memory.
//
// It serves a single process deployment, where the API server and worker loops
// run in one process. Messages are lost on exit.
package inmemory

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	kdb "github.com/opst/modelfab/pkg/domain/queue/db"
	"github.com/puzpuzpuz/xsync/v3"
)

type channel struct {
	lock sync.Mutex
	msgs []kdb.Message
}

type Queue struct {
	channels *xsync.MapOf[string, *channel]
	closed   atomic.Bool

	// capacity of each channel. zero or less is unlimited.
	limit int
}

var _ kdb.Interface = &Queue{}

// New creates an empty queue.
//
// limit is the capacity of each channel. Zero or less means unlimited.
func New(limit int) *Queue {
	return &Queue{channels: xsync.NewMapOf[string, *channel](), limit: limit}
}

func (q *Queue) channel(name string) *channel {
	ch, _ := q.channels.LoadOrCompute(name, func() *channel { return &channel{} })
	return ch
}

// Close makes the queue reject further Push and Pop with ErrClosed.
func (q *Queue) Close() error {
	q.closed.Store(true)
	return nil
}

func (q *Queue) Push(_ context.Context, name string, payload any) (string, error) {
	if q.closed.Load() {
		return "", kdb.ErrClosed
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ch := q.channel(name)
	ch.lock.Lock()
	defer ch.lock.Unlock()

	if 0 < q.limit && q.limit <= len(ch.msgs) {
		return "", kdb.ErrWouldBlock
	}
	msg := kdb.Message{Id: uuid.NewString(), Channel: name, Payload: b, EnqueuedAt: time.Now()}
	ch.msgs = append(ch.msgs, msg)
	return msg.Id, nil
}

func (q *Queue) Pop(_ context.Context, name string, handler func(kdb.Message) error) (bool, error) {
	if q.closed.Load() {
		return false, kdb.ErrClosed
	}

	ch := q.channel(name)
	ch.lock.Lock()
	if len(ch.msgs) == 0 {
		ch.lock.Unlock()
		return false, nil
	}
	msg := ch.msgs[0]
	ch.msgs = ch.msgs[1:]
	ch.lock.Unlock()

	if handler == nil {
		return true, nil
	}
	err := handler(msg)
	if err != nil && !kdb.IsDropped(err) {
		// back to the head
		ch.lock.Lock()
		ch.msgs = append([]kdb.Message{msg}, ch.msgs...)
		ch.lock.Unlock()
		return false, err
	}
	return true, err
}

func (q *Queue) Len(_ context.Context, name string) (int, error) {
	ch := q.channel(name)
	ch.lock.Lock()
	defer ch.lock.Unlock()
	return len(ch.msgs), nil
}
