// this package provide "mock" implementation of the history for testing.
package mock

import (
	"context"
	"errors"

	"github.com/opst/modelfab/pkg/domain/changeset"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
)

type MockHistory struct {
	Impl struct {
		Version          func(context.Context) (int64, error)
		Record           func(context.Context, int64, []changeset.Info) (int64, error)
		Changes          func(context.Context, int64, int64) ([]changeset.Info, error)
		DeployedVersions func(context.Context) (map[string]int64, error)
		MarkDeployed     func(context.Context, []string, int64) error
	}
}

var _ kdb.Interface = &MockHistory{}

func New() *MockHistory {
	return &MockHistory{}
}

func (m *MockHistory) Version(ctx context.Context) (int64, error) {
	if m.Impl.Version == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Version(ctx)
}

func (m *MockHistory) Record(ctx context.Context, expected int64, changes []changeset.Info) (int64, error) {
	if m.Impl.Record == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Record(ctx, expected, changes)
}

func (m *MockHistory) Changes(ctx context.Context, after int64, until int64) ([]changeset.Info, error) {
	if m.Impl.Changes == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Changes(ctx, after, until)
}

func (m *MockHistory) DeployedVersions(ctx context.Context) (map[string]int64, error) {
	if m.Impl.DeployedVersions == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeployedVersions(ctx)
}

func (m *MockHistory) MarkDeployed(ctx context.Context, nodeIds []string, version int64) error {
	if m.Impl.MarkDeployed == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.MarkDeployed(ctx, nodeIds, version)
}
