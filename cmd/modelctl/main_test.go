package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/opst/modelfab/cmd/modelctl/rest"
	"github.com/opst/modelfab/pkg/api/binderr"
	"github.com/opst/modelfab/pkg/api/types"
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/history"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
)

type mockClient struct {
	t    *testing.T
	Impl struct {
		GetModels      func(context.Context) (types.Summary, error)
		GetNode        func(context.Context, string) (types.Resolved, error)
		GetChanges     func(context.Context, int64) (types.Changes, error)
		PostChanges    func(context.Context, update.Request, bool) (rest.Submitted[update.Response], error)
		GetDeployment  func(context.Context) (*report.Report, error)
		PostDeployment func(context.Context, history.DeploymentRequest, bool) (rest.Submitted[*report.Report], error)
	}
}

func (m *mockClient) GetModels(ctx context.Context) (types.Summary, error) {
	if m.Impl.GetModels == nil {
		m.t.Fatal("[MOCK] GetModels is not implemented")
	}
	return m.Impl.GetModels(ctx)
}

func (m *mockClient) GetNode(ctx context.Context, sel string) (types.Resolved, error) {
	if m.Impl.GetNode == nil {
		m.t.Fatal("[MOCK] GetNode is not implemented")
	}
	return m.Impl.GetNode(ctx, sel)
}

func (m *mockClient) GetChanges(ctx context.Context, after int64) (types.Changes, error) {
	if m.Impl.GetChanges == nil {
		m.t.Fatal("[MOCK] GetChanges is not implemented")
	}
	return m.Impl.GetChanges(ctx, after)
}

func (m *mockClient) PostChanges(ctx context.Context, req update.Request, sync bool) (rest.Submitted[update.Response], error) {
	if m.Impl.PostChanges == nil {
		m.t.Fatal("[MOCK] PostChanges is not implemented")
	}
	return m.Impl.PostChanges(ctx, req, sync)
}

func (m *mockClient) GetDeployment(ctx context.Context) (*report.Report, error) {
	if m.Impl.GetDeployment == nil {
		m.t.Fatal("[MOCK] GetDeployment is not implemented")
	}
	return m.Impl.GetDeployment(ctx)
}

func (m *mockClient) PostDeployment(ctx context.Context, req history.DeploymentRequest, sync bool) (rest.Submitted[*report.Report], error) {
	if m.Impl.PostDeployment == nil {
		m.t.Fatal("[MOCK] PostDeployment is not implemented")
	}
	return m.Impl.PostDeployment(ctx, req, sync)
}

func run(t *testing.T, mock *mockClient, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	orig := newClient
	newClient = func(string) (rest.Client, error) { return mock, nil }
	t.Cleanup(func() { newClient = orig })

	out := new(bytes.Buffer)
	err := execute(append([]string{"modelctl"}, args...), out, new(bytes.Buffer))
	return out.String(), err
}

func TestModelsCmd(t *testing.T) {
	mock := &mockClient{t: t}
	mock.Impl.GetModels = func(context.Context) (types.Summary, error) {
		return types.Summary{Version: 7, Classes: []string{"emf:Case"}, Definitions: []string{"caseBase"}}, nil
	}
	out, err := run(t, mock, "models")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"version: 7", "classes (1):", "  emf:Case", "definitions (1):", "properties (0):"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q is not in output:\n%s", want, out)
		}
	}
}

func TestChangesCmd(t *testing.T) {
	mock := &mockClient{t: t}
	var after int64
	mock.Impl.GetChanges = func(_ context.Context, a int64) (types.Changes, error) {
		after = a
		return types.Changes{Version: 3, Changes: []changeset.Info{{
			ChangeSet: changeset.ChangeSet{
				Selector: "class=emf:Case/attribute=ptop:title", Operation: changeset.OpModifyAttribute,
				OldValue: "Case", NewValue: "Test Case",
			},
			Version: 3, Status: changeset.Applied,
		}}}, nil
	}
	out, err := run(t, mock, "changes", "--after", "2")
	if err != nil {
		t.Fatal(err)
	}
	if after != 2 {
		t.Errorf("after: %d", after)
	}
	if !strings.Contains(out, `v3 modifyAttribute class=emf:Case/attribute=ptop:title: "Case" -> "Test Case" [applied]`) {
		t.Errorf("output:\n%s", out)
	}

	if _, err := run(t, &mockClient{t: t}, "changes", "--after", "-1"); err == nil {
		t.Error("negative version should be an error")
	}
}

func TestApplyCmd(t *testing.T) {
	dir := t.TempDir()
	requestFile := filepath.Join(dir, "request.yaml")
	if err := os.WriteFile(requestFile, []byte(`
modelVersion: 3
changes:
  - selector: class=emf:Case/attribute=ptop:title
    operation: modifyAttribute
    oldValue: Case
    newValue: Test Case
`), 0o600); err != nil {
		t.Fatal(err)
	}
	listFile := filepath.Join(dir, "changes.json")
	if err := os.WriteFile(listFile, []byte(`[{"selector": "class=emf:Case", "operation": "restoreNode", "newValue": null}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("request is sent synchronously by default", func(t *testing.T) {
		mock := &mockClient{t: t}
		var sent update.Request
		var sync bool
		mock.Impl.PostChanges = func(_ context.Context, req update.Request, s bool) (rest.Submitted[update.Response], error) {
			sent, sync = req, s
			return rest.Submitted[update.Response]{Result: update.Response{Id: "r-1", ModelVersion: 4}}, nil
		}
		out, err := run(t, mock, "apply", requestFile, "--force")
		if err != nil {
			t.Fatal(err)
		}
		if !sync || !sent.Force || sent.ModelVersion != 3 || len(sent.Changes) != 1 || sent.Changes[0].NewValue != "Test Case" {
			t.Errorf("sent: %+v (sync: %t)", sent, sync)
		}
		if !strings.Contains(out, "accepted r-1: version 4") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("a list of changes is a request", func(t *testing.T) {
		mock := &mockClient{t: t}
		mock.Impl.PostChanges = func(_ context.Context, req update.Request, s bool) (rest.Submitted[update.Response], error) {
			if len(req.Changes) != 1 || req.Changes[0].Operation != "restoreNode" || s {
				t.Errorf("sent: %+v (sync: %t)", req, s)
			}
			return rest.Submitted[update.Response]{Ticket: &management.Ticket{Id: "t-1", Channel: "MODEL_UPDATE_QUEUE"}}, nil
		}
		out, err := run(t, mock, "apply", listFile, "--async")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "queued t-1 (MODEL_UPDATE_QUEUE)") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("rejection prints the report", func(t *testing.T) {
		mock := &mockClient{t: t}
		mock.Impl.PostChanges = func(context.Context, update.Request, bool) (rest.Submitted[update.Response], error) {
			r := report.New(3)
			r.Fail("emf:Case", "class", "expected Case, but Test Case")
			return rest.Submitted[update.Response]{}, &rest.ServerError{
				Status: 409, Message: binderr.ErrorMessage{Reason: "UpdateModelFailed", Report: r},
			}
		}
		out, err := run(t, mock, "apply", requestFile)
		var serr *rest.ServerError
		if !errors.As(err, &serr) {
			t.Errorf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "[ng] emf:Case (class)") || !strings.Contains(out, "expected Case, but Test Case") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := run(t, &mockClient{t: t}, "apply", filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("no error")
		}
	})
}

func TestValidateCmd(t *testing.T) {
	mock := &mockClient{t: t}
	mock.Impl.GetDeployment = func(context.Context) (*report.Report, error) {
		r := report.New(5)
		r.Pass("emf:Case", "class")
		r.Fail("caseBase", "definition", "broken")
		return r, nil
	}
	out, err := run(t, mock, "validate")
	var silent *SilentExitError
	if !errors.As(err, &silent) {
		t.Errorf("unexpected error: %v", err)
	}
	for _, want := range []string{"report at version 5: invalid", "[ok] emf:Case (class)", "[ng] caseBase (definition)", "error: broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q is not in output:\n%s", want, out)
		}
	}
}

func TestDeployCmd(t *testing.T) {
	t.Run("--all deploys candidates pinned at their version", func(t *testing.T) {
		mock := &mockClient{t: t}
		mock.Impl.GetDeployment = func(context.Context) (*report.Report, error) {
			r := report.New(12)
			r.Pass("emf:Case", "class")
			r.Pass("caseBase", "definition")
			return r, nil
		}
		var sent history.DeploymentRequest
		mock.Impl.PostDeployment = func(_ context.Context, req history.DeploymentRequest, _ bool) (rest.Submitted[*report.Report], error) {
			sent = req
			r := report.New(req.Version)
			for _, id := range req.ModelsToDeploy {
				r.Pass(id, "")
			}
			return rest.Submitted[*report.Report]{Result: r}, nil
		}
		out, err := run(t, mock, "deploy", "--all")
		if err != nil {
			t.Fatal(err)
		}
		if sent.Version != 12 || len(sent.ModelsToDeploy) != 2 {
			t.Errorf("sent: %+v", sent)
		}
		if !strings.Contains(out, "report at version 12: valid") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("nothing to deploy", func(t *testing.T) {
		mock := &mockClient{t: t}
		mock.Impl.GetDeployment = func(context.Context) (*report.Report, error) {
			return report.New(3), nil
		}
		out, err := run(t, mock, "deploy", "--all")
		if err != nil || !strings.Contains(out, "nothing to be deployed") {
			t.Errorf("output: %s, err: %v", out, err)
		}
	})

	t.Run("node ids and --all are exclusive", func(t *testing.T) {
		if _, err := run(t, &mockClient{t: t}, "deploy", "--all", "emf:Case"); err == nil {
			t.Error("no error")
		}
		if _, err := run(t, &mockClient{t: t}, "deploy"); err == nil {
			t.Error("no error")
		}
	})

	t.Run("given nodes are deployed at the version", func(t *testing.T) {
		mock := &mockClient{t: t}
		mock.Impl.PostDeployment = func(_ context.Context, req history.DeploymentRequest, sync bool) (rest.Submitted[*report.Report], error) {
			if req.Version != 9 || len(req.ModelsToDeploy) != 1 || req.ModelsToDeploy[0] != "emf:Case" || !sync {
				t.Errorf("sent: %+v", req)
			}
			return rest.Submitted[*report.Report]{Result: report.New(9)}, nil
		}
		if _, err := run(t, mock, "deploy", "emf:Case", "--version", "9"); err != nil {
			t.Fatal(err)
		}
	})
}
