// Package context bounds contexts of tests by the deadline of go test.
package context

import (
	"context"
	"testing"
	"time"
)

// Margin is left between the deadline of contexts and the one of the test,
// for clean-up of databases.
const Margin = time.Second

// WithTest returns ctx bounded by t.Deadline() - Margin.
//
// The context is cancelled on cleanup of t.
func WithTest(ctx context.Context, t *testing.T) context.Context {
	t.Helper()
	var cancel context.CancelFunc
	if deadline, ok := t.Deadline(); ok {
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-Margin))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	t.Cleanup(cancel)
	return ctx
}
