// this package provide "mock" implementation of the queue for testing.
package mock

import (
	"context"
	"errors"

	kdb "github.com/opst/modelfab/pkg/domain/queue/db"
)

type MockQueue struct {
	Impl struct {
		Push func(ctx context.Context, channel string, payload any) (string, error)
		Pop  func(ctx context.Context, channel string, handler func(kdb.Message) error) (bool, error)
		Len  func(ctx context.Context, channel string) (int, error)
	}
}

var _ kdb.Interface = &MockQueue{}

func New() *MockQueue {
	return &MockQueue{}
}

func (m *MockQueue) Push(ctx context.Context, channel string, payload any) (string, error) {
	if m.Impl.Push == nil {
		return "", errors.New("[MOCK] not implemented")
	}
	return m.Impl.Push(ctx, channel, payload)
}

func (m *MockQueue) Pop(ctx context.Context, channel string, handler func(kdb.Message) error) (bool, error) {
	if m.Impl.Pop == nil {
		return false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Pop(ctx, channel, handler)
}

func (m *MockQueue) Len(ctx context.Context, channel string) (int, error) {
	if m.Impl.Len == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Len(ctx, channel)
}
