// Package loop runs a task repeatedly, threading a value through the iterations.
//
// The queue workers of modelfab are built on this: each worker pops one message per
// iteration and decides, from the outcome, whether to go on at once, cool down, or stop.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after one iteration.
//
// The zero value is Continue(0).
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.quit:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.interval)
	}
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err is returned from Start as it is, and can be nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one iteration. It receives the value returned by the last iteration.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task with init, and then with its own last result, until it breaks
// or ctx is done.
//
// Counting up to 10:
//
//	Start(ctx, 1, func(_ context.Context, v int) (int, Next) {
//		if 10 <= v {
//			return v, Break(nil)
//		}
//		return v + 1, Continue(0)
//	})
//
// # Returns
//
// - T: the value returned by the last iteration. This is returned even with an error.
//
// - error: the error passed to Break, or ctx.Err() when ctx is done.
func Start[T any](ctx context.Context, init T, task Task[T], options ...LoopOption) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		v, next := iterate(ctx, value, task, options)
		if next.err != nil {
			return v, next.err
		}
		if next.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			// shutting down comes first.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

func iterate[T any](ctx context.Context, value T, task Task[T], options []LoopOption) (T, Next) {
	for _, opt := range options {
		var release context.CancelFunc
		ctx, release = opt(ctx)
		defer release()
	}
	return task(ctx, value)
}

// LoopOption derives the context of each iteration.
// The returned CancelFunc is called when the iteration ends.
type LoopOption func(context.Context) (context.Context, context.CancelFunc)

// WithTimeout sets a deadline on the context passed to each iteration.
func WithTimeout(d time.Duration) LoopOption {
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, d)
	}
}
