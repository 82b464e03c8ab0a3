// Package workers runs loops consuming the queues of the model management service.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opst/modelfab/pkg/loop"
	"github.com/opst/modelfab/pkg/loop/recurring"
	"golang.org/x/sync/errgroup"
)

type LoopType string

const (
	// Update applies queued update requests.
	Update LoopType = "update"

	// Deploy runs queued deployment requests.
	Deploy LoopType = "deploy"

	// Response delivers outcomes of updates to listeners.
	Response LoopType = "response"
)

// LoopTypes are all of known loop types, in the order of the flow.
var LoopTypes = []LoopType{Update, Response, Deploy}

var ErrUnknownLoopType = errors.New("unknown loop type")

func (t LoopType) String() string {
	return string(t)
}

func (t LoopType) IsKnown() bool {
	for _, k := range LoopTypes {
		if t == k {
			return true
		}
	}
	return false
}

func AsLoopType(s string) (LoopType, error) {
	t := LoopType(s)
	if !t.IsKnown() {
		return "", fmt.Errorf("%w: %s", ErrUnknownLoopType, s)
	}
	return t, nil
}

// Service processes one queued message per call.
//
// Each method reports whether a message is popped.
type Service interface {
	ProcessUpdate(ctx context.Context) (bool, error)
	ProcessDeployment(ctx context.Context) (bool, error)
	ProcessResponse(ctx context.Context) (bool, error)
}

// Progress is the value threaded through iterations of a loop.
type Progress struct {
	// Processed is the number of messages popped so far.
	Processed uint64

	// Failures is the number of iterations ended with an error.
	Failures uint64
}

// Seed is the initial value of loops.
func Seed() Progress {
	return Progress{}
}

// Task pops one message of the queue for the loop type.
func Task(svc Service, t LoopType) recurring.Task[Progress] {
	var process func(context.Context) (bool, error)
	switch t {
	case Update:
		process = svc.ProcessUpdate
	case Deploy:
		process = svc.ProcessDeployment
	case Response:
		process = svc.ProcessResponse
	default:
		return func(_ context.Context, p Progress) (Progress, bool, error) {
			return p, false, fmt.Errorf("%w: %s", ErrUnknownLoopType, t)
		}
	}

	return func(ctx context.Context, p Progress) (Progress, bool, error) {
		popped, err := process(ctx)
		if popped {
			p.Processed += 1
		}
		if err != nil {
			p.Failures += 1
		}
		return p, popped, err
	}
}

type LoggerOptions func(*log.Logger) *log.Logger

// NewLogger applies options to l in order. Pass Copied() first to keep l intact.
func NewLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

func WithTimestamp() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetFlags(l.Flags() | log.Ldate | log.Ltime | log.Lmicroseconds)
		return l
	}
}

// monitor logs iterations which popped something or failed.
//
// Idle iterations are not logged, since loops poll queues.
func monitor(logger *log.Logger, task loop.Task[Progress]) loop.Task[Progress] {
	var counter uint64
	return func(ctx context.Context, p Progress) (ret Progress, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		defer func() {
			if ret == p {
				return
			}
			logger.Printf(
				"task end: #0x%X (takes %s): %s (processed: %d, failures: %d)",
				counter, time.Since(timestamp), next, ret.Processed, ret.Failures,
			)
		}()

		ret, next = task(ctx, p)
		return
	}
}

// LoopManifest determines how a loop behaves.
type LoopManifest struct {
	Type LoopType

	// Policy for the looping
	Policy recurring.Policy

	// Timeout of each iteration. No timeout when it is zero.
	Timeout time.Duration
}

// StartLoop runs the loop until ctx is done or the policy breaks it.
func StartLoop(ctx context.Context, logger *log.Logger, svc Service, manifest LoopManifest) (Progress, error) {
	if !manifest.Type.IsKnown() {
		return Seed(), fmt.Errorf("%w: %s", ErrUnknownLoopType, manifest.Type)
	}
	if logger == nil {
		logger = log.Default()
	}
	l := NewLogger(logger, Copied(), WithPrefix(fmt.Sprintf("[%s loop] ", manifest.Type)))

	options := []loop.LoopOption{}
	if manifest.Timeout > 0 {
		options = append(options, loop.WithTimeout(manifest.Timeout))
	}
	return loop.Start(
		ctx, Seed(),
		monitor(l, Task(svc, manifest.Type).Applied(manifest.Policy)),
		options...,
	)
}

// StartLoops runs loops of all types in parallel.
//
// When one of them stops with an error, the others are cancelled.
func StartLoops(ctx context.Context, logger *log.Logger, svc Service, policy recurring.Policy, timeout time.Duration) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range LoopTypes {
		manifest := LoopManifest{Type: t, Policy: policy, Timeout: timeout}
		eg.Go(func() error {
			_, err := StartLoop(ctx, logger, svc, manifest)
			return err
		})
	}
	return eg.Wait()
}
