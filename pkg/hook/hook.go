// Package hook delivers values, such as outcomes of model updates, to listeners.
package hook

import (
	"context"
	"errors"
)

var ErrHookFailed = errors.New("hook failed")

// Listener is notified of values after they are processed.
type Listener[T any] interface {
	Notify(ctx context.Context, value T) error
}

// Func is a Listener calling a function.
type Func[T any] func(ctx context.Context, value T) error

func (f Func[T]) Notify(ctx context.Context, value T) error {
	if f == nil {
		return nil
	}
	if err := f(ctx, value); err != nil {
		return errors.Join(err, ErrHookFailed)
	}
	return nil
}

// None is a Listener that does nothing.
type None[T any] struct{}

func (None[T]) Notify(context.Context, T) error {
	return nil
}
