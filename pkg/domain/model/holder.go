package model

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the current graph.
//
// Readers get the current graph without locking. Writers are serialized, and publish
// a new graph instead of changing the current one.
type Holder struct {
	writer  sync.Mutex
	current atomic.Pointer[Models]
}

func NewHolder(initial *Models) *Holder {
	h := &Holder{}
	h.current.Store(initial)
	return h
}

// Current returns the graph published last. It must not be mutated.
func (h *Holder) Current() *Models {
	return h.current.Load()
}

// Update calls fn with the current graph, excluding other writers.
//
// When fn returns a non-nil graph without error, it is published.
// The graph passed to fn must not be mutated. Clone it.
func (h *Holder) Update(fn func(current *Models) (*Models, error)) error {
	h.writer.Lock()
	defer h.writer.Unlock()

	next, err := fn(h.current.Load())
	if err != nil {
		return err
	}
	if next != nil {
		h.current.Store(next)
	}
	return nil
}
