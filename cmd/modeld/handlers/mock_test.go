package handlers_test

import (
	"context"
	"testing"

	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/history"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
)

type MockService struct {
	t    *testing.T
	Impl struct {
		Models                       func(context.Context) (*model.Models, error)
		Resolve                      func(context.Context, string) (*model.Models, selector.Target, error)
		Changes                      func(context.Context, int64) ([]changeset.Info, error)
		UpdateModel                  func(context.Context, update.Request) (update.Response, error)
		SubmitUpdate                 func(context.Context, update.Request) (management.Ticket, error)
		ValidateDeploymentCandidates func(context.Context) (*report.Report, error)
		DeployChanges                func(context.Context, history.DeploymentRequest) (*report.Report, error)
		SubmitDeployment             func(context.Context, history.DeploymentRequest) (management.Ticket, error)
	}
	Calls struct {
		Changes          []int64
		UpdateModel      []update.Request
		SubmitUpdate     []update.Request
		DeployChanges    []history.DeploymentRequest
		SubmitDeployment []history.DeploymentRequest
	}
}

func NewMockService(t *testing.T) *MockService {
	return &MockService{t: t}
}

func (m *MockService) Models(ctx context.Context) (*model.Models, error) {
	m.t.Helper()
	if m.Impl.Models == nil {
		m.t.Fatal("[MOCK] Models is not implemented")
	}
	return m.Impl.Models(ctx)
}

func (m *MockService) Resolve(ctx context.Context, sel string) (*model.Models, selector.Target, error) {
	m.t.Helper()
	if m.Impl.Resolve == nil {
		m.t.Fatal("[MOCK] Resolve is not implemented")
	}
	return m.Impl.Resolve(ctx, sel)
}

func (m *MockService) Changes(ctx context.Context, after int64) ([]changeset.Info, error) {
	m.t.Helper()
	m.Calls.Changes = append(m.Calls.Changes, after)
	if m.Impl.Changes == nil {
		m.t.Fatal("[MOCK] Changes is not implemented")
	}
	return m.Impl.Changes(ctx, after)
}

func (m *MockService) UpdateModel(ctx context.Context, req update.Request) (update.Response, error) {
	m.t.Helper()
	m.Calls.UpdateModel = append(m.Calls.UpdateModel, req)
	if m.Impl.UpdateModel == nil {
		m.t.Fatal("[MOCK] UpdateModel is not implemented")
	}
	return m.Impl.UpdateModel(ctx, req)
}

func (m *MockService) SubmitUpdate(ctx context.Context, req update.Request) (management.Ticket, error) {
	m.t.Helper()
	m.Calls.SubmitUpdate = append(m.Calls.SubmitUpdate, req)
	if m.Impl.SubmitUpdate == nil {
		m.t.Fatal("[MOCK] SubmitUpdate is not implemented")
	}
	return m.Impl.SubmitUpdate(ctx, req)
}

func (m *MockService) ValidateDeploymentCandidates(ctx context.Context) (*report.Report, error) {
	m.t.Helper()
	if m.Impl.ValidateDeploymentCandidates == nil {
		m.t.Fatal("[MOCK] ValidateDeploymentCandidates is not implemented")
	}
	return m.Impl.ValidateDeploymentCandidates(ctx)
}

func (m *MockService) DeployChanges(ctx context.Context, req history.DeploymentRequest) (*report.Report, error) {
	m.t.Helper()
	m.Calls.DeployChanges = append(m.Calls.DeployChanges, req)
	if m.Impl.DeployChanges == nil {
		m.t.Fatal("[MOCK] DeployChanges is not implemented")
	}
	return m.Impl.DeployChanges(ctx, req)
}

func (m *MockService) SubmitDeployment(ctx context.Context, req history.DeploymentRequest) (management.Ticket, error) {
	m.t.Helper()
	m.Calls.SubmitDeployment = append(m.Calls.SubmitDeployment, req)
	if m.Impl.SubmitDeployment == nil {
		m.t.Fatal("[MOCK] SubmitDeployment is not implemented")
	}
	return m.Impl.SubmitDeployment(ctx, req)
}
