package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/modelfab/pkg/loop"
	"github.com/opst/modelfab/pkg/utils/try"
)

func TestStart(t *testing.T) {
	t.Run("it repeats the task until it breaks", func(t *testing.T) {
		actual, err := loop.Start(context.Background(), 1, func(_ context.Context, v int) (int, loop.Next) {
			if 10 <= v+1 {
				return v + 1, loop.Break(nil)
			}
			return v + 1, loop.Continue(0)
		})
		if err != nil {
			t.Fatal(err)
		}
		if actual != 10 {
			t.Errorf("repeats too much/less: actual = %d, expected = 10", actual)
		}
	})

	t.Run("it returns the error passed to Break with the last value", func(t *testing.T) {
		expectedErr := errors.New("break!")
		actual, err := loop.Start(context.Background(), 1, func(_ context.Context, v int) (int, loop.Next) {
			if 5 <= v {
				return v, loop.Break(expectedErr)
			}
			return v + 1, loop.Continue(0)
		})
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 5 {
			t.Errorf("unexpected value: %d", actual)
		}
	})

	t.Run("when the context is done before starting, it does nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		actual, err := loop.Start(ctx, 1, func(_ context.Context, v int) (int, loop.Next) {
			t.Error("task is called")
			return v + 1, loop.Continue(0)
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 1 {
			t.Errorf("unexpected value: %d", actual)
		}
	})

	t.Run("it stops when the context is done while waiting the interval", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		actual, err := loop.Start(ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
			return v + 1, loop.Continue(time.Hour)
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 1 {
			t.Errorf("task runs %d times", actual)
		}
	})

	t.Run("WithTimeout sets a deadline for each iteration", func(t *testing.T) {
		timeout := 100 * time.Millisecond
		try.To(loop.Start(
			context.Background(), 1,
			func(ctx context.Context, v int) (int, loop.Next) {
				deadline, ok := ctx.Deadline()
				if !ok {
					t.Error("deadline is not set")
				} else if time.Until(deadline) > timeout {
					t.Errorf("deadline is too far: %s", deadline)
				}
				if 3 <= v {
					return v, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
			loop.WithTimeout(timeout),
		)).OrFatal(t)
	})

	t.Run("without WithTimeout, there are no deadline", func(t *testing.T) {
		try.To(loop.Start(
			context.Background(), 1,
			func(ctx context.Context, v int) (int, loop.Next) {
				if deadline, ok := ctx.Deadline(); ok {
					t.Errorf("deadline is set: %s", deadline)
				}
				return v, loop.Break(nil)
			},
		)).OrFatal(t)
	})
}
