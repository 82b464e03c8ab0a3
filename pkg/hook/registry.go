package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds listeners by name. It is safe for concurrent use.
type Registry[T any] struct {
	listeners *xsync.MapOf[string, Listener[T]]
	seq       atomic.Uint64
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{listeners: xsync.NewMapOf[string, Listener[T]]()}
}

// Register adds the listener, replacing one with the same name.
//
// When name is empty, a unique one is given.
// The returned function removes the listener.
func (r *Registry[T]) Register(name string, l Listener[T]) (unregister func()) {
	if name == "" {
		name = fmt.Sprintf("#%d", r.seq.Add(1))
	}
	r.listeners.Store(name, l)
	return func() { r.listeners.Delete(name) }
}

// Len is the number of listeners.
func (r *Registry[T]) Len() int {
	return r.listeners.Size()
}

// Notify notifies all listeners in the order of their names.
//
// A failing listener does not stop others. Errors are joined.
func (r *Registry[T]) Notify(ctx context.Context, value T) error {
	names := make([]string, 0, r.listeners.Size())
	r.listeners.Range(func(name string, _ Listener[T]) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		l, ok := r.listeners.Load(name)
		if !ok {
			continue
		}
		if err := l.Notify(ctx, value); err != nil {
			errs = append(errs, fmt.Errorf("listener %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
