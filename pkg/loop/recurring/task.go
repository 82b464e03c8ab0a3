package recurring

import (
	"context"

	"github.com/opst/modelfab/pkg/loop"
)

// Task is one iteration of a worker loop.
//
// # Returns
//
// - T: passed to the next iteration.
//
// - bool: true when this iteration processed something, so more backlog can be there.
//
// - error: error of this iteration. What it causes depends on the Policy.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied makes a loop.Task which decides the next step with p.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, value T) (T, loop.Next) {
		next, updated, err := rt(ctx, value)
		return next, p.Next(updated, err)
	}
}
