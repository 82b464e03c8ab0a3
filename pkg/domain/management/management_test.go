package management_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/deploy"
	"github.com/opst/modelfab/pkg/domain/history"
	hist_inmemory "github.com/opst/modelfab/pkg/domain/history/db/inmemory"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/model"
	qdb "github.com/opst/modelfab/pkg/domain/queue/db"
	queue_inmemory "github.com/opst/modelfab/pkg/domain/queue/db/inmemory"
	queue_mock "github.com/opst/modelfab/pkg/domain/queue/db/mock"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
	"github.com/opst/modelfab/pkg/hook"
	"github.com/opst/modelfab/pkg/utils/try"
)

const classTitle = "class=emf:Case/attribute=ptop:title"

func seed() *model.Models {
	m := model.New(model.NewMetaInfo(map[model.Kind][]model.AttributeMeta{
		model.KindClass: {{Name: "ptop:title", DataType: model.TypeLabel}},
	}))
	m.PutClass("emf:Case", "").SetAttribute("ptop:title", model.TypeLabel, "Case")
	m.MarkAllDeployed()
	return m
}

func modify(old, new any) update.Request {
	return update.Request{Changes: []changeset.ChangeSet{{
		Selector: classTitle, Operation: changeset.OpModifyAttribute, OldValue: old, NewValue: new,
	}}}
}

type tripleStore struct {
	saved map[string][]deploy.Triple
	fail  bool
}

func (s *tripleStore) Save(_ context.Context, id string, triples []deploy.Triple) error {
	if s.fail {
		return errors.New("triple store is down")
	}
	s.saved[id] = triples
	return nil
}

func (s *tripleStore) Remove(_ context.Context, id string) error {
	delete(s.saved, id)
	return nil
}

type noDefinitions struct{}

func (noDefinitions) Validate(context.Context, string, []byte) ([]report.Message, error) {
	return nil, nil
}
func (noDefinitions) Import(context.Context, string, []byte) error { return nil }
func (noDefinitions) Remove(context.Context, string) error         { return nil }

type env struct {
	service *management.Service
	queue   *queue_inmemory.Queue
	triples *tripleStore
	updates []management.UpdateOutcome
	deploys []management.DeployOutcome
}

func setup(t *testing.T, async bool, options ...management.Option) *env {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	triples := &tripleStore{saved: map[string][]deploy.Triple{}}
	hs := try.To(history.New(
		seed(), hist_inmemory.New(),
		changeset.NewManager(changeset.DefaultRegistry()),
		&deploy.Validator{Definitions: noDefinitions{}},
		&deploy.Deployer{Definitions: noDefinitions{}, Semantic: triples},
		history.WithLogger(logger),
	)).OrFatal(t)

	e := &env{queue: queue_inmemory.New(0), triples: triples}
	mode := management.Sync()
	if async {
		mode = management.Async(e.queue)
	}
	e.service = management.New(hs, update.New(hs, logger), mode, logger, options...)
	e.service.UpdateListeners().Register("test", hook.Func[management.UpdateOutcome](
		func(_ context.Context, o management.UpdateOutcome) error {
			e.updates = append(e.updates, o)
			return nil
		},
	))
	e.service.DeployListeners().Register("test", hook.Func[management.DeployOutcome](
		func(_ context.Context, o management.DeployOutcome) error {
			e.deploys = append(e.deploys, o)
			return nil
		},
	))
	return e
}

func (e *env) version(t *testing.T) int64 {
	t.Helper()
	return try.To(e.service.Models(context.Background())).OrFatal(t).Version()
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("submitted update is applied before returning", func(t *testing.T) {
		e := setup(t, false)
		ticket := try.To(e.service.SubmitUpdate(ctx, modify("Case", "Test Case"))).OrFatal(t)

		if ticket.Id == "" || ticket.Channel != qdb.UpdateChannel {
			t.Errorf("ticket: %+v", ticket)
		}
		if e.version(t) != 1 {
			t.Errorf("version: %d", e.version(t))
		}
		if len(e.updates) != 1 || !e.updates[0].Accepted || e.updates[0].Id != ticket.Id {
			t.Errorf("outcomes: %+v", e.updates)
		}
		if n := try.To(e.queue.Len(ctx, qdb.UpdateChannel)).OrFatal(t); n != 0 {
			t.Errorf("queued: %d", n)
		}
	})

	t.Run("rejected update is notified, and the request is done", func(t *testing.T) {
		e := setup(t, false)
		if _, err := e.service.SubmitUpdate(ctx, modify("Old Case", "Test Case")); err != nil {
			t.Fatal(err)
		}
		if e.version(t) != 0 {
			t.Errorf("version: %d", e.version(t))
		}
		if len(e.updates) != 1 || e.updates[0].Accepted || e.updates[0].Report.IsValid() {
			t.Errorf("outcomes: %+v", e.updates)
		}
	})

	t.Run("UpdateModel returns the rejection", func(t *testing.T) {
		e := setup(t, false)
		_, err := e.service.UpdateModel(ctx, modify("Old Case", "Test Case"))
		var failed *update.UpdateModelFailedError
		if !errors.As(err, &failed) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("submitted deployment is done before returning", func(t *testing.T) {
		e := setup(t, false)
		try.To(e.service.UpdateModel(ctx, modify("Case", "Test Case"))).OrFatal(t)

		r := try.To(e.service.ValidateDeploymentCandidates(ctx)).OrFatal(t)
		if len(r.Nodes) != 1 || r.Nodes[0].Id != "emf:Case" {
			t.Errorf("candidates: %+v", r)
		}

		try.To(e.service.SubmitDeployment(ctx, history.DeploymentRequest{ModelsToDeploy: []string{"emf:Case"}})).OrFatal(t)
		if _, ok := e.triples.saved["emf:Case"]; !ok {
			t.Error("not deployed")
		}
		if len(e.deploys) != 1 || !e.deploys[0].Deployed {
			t.Errorf("outcomes: %+v", e.deploys)
		}

		r = try.To(e.service.ValidateDeploymentCandidates(ctx)).OrFatal(t)
		if !r.IsEmpty() {
			t.Errorf("candidates after deployment: %+v", r)
		}
	})

	t.Run("rolled back deployment is an error of the submission", func(t *testing.T) {
		e := setup(t, false)
		e.triples.fail = true
		try.To(e.service.UpdateModel(ctx, modify("Case", "Test Case"))).OrFatal(t)

		_, err := e.service.SubmitDeployment(ctx, history.DeploymentRequest{ModelsToDeploy: []string{"emf:Case"}})
		var rb *deploy.RollbackedError
		if !errors.As(err, &rb) || !qdb.IsDropped(err) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(e.deploys) != 1 || e.deploys[0].Deployed || e.deploys[0].Error == "" {
			t.Errorf("outcomes: %+v", e.deploys)
		}
	})
}

func TestAsync(t *testing.T) {
	ctx := context.Background()

	t.Run("updates are processed by workers in order", func(t *testing.T) {
		e := setup(t, true)
		first := try.To(e.service.SubmitUpdate(ctx, modify("Case", "A"))).OrFatal(t)
		second := try.To(e.service.SubmitUpdate(ctx, modify("A", "B"))).OrFatal(t)

		if e.version(t) != 0 {
			t.Errorf("applied before processed: %d", e.version(t))
		}

		for _, want := range []int64{1, 2} {
			if !try.To(e.service.ProcessUpdate(ctx)).OrFatal(t) {
				t.Fatal("nothing processed")
			}
			if e.version(t) != want {
				t.Errorf("version: %d, want %d", e.version(t), want)
			}
		}
		if try.To(e.service.ProcessUpdate(ctx)).OrFatal(t) {
			t.Error("processed on empty queue")
		}

		if len(e.updates) != 0 {
			t.Error("outcomes are delivered before the response worker")
		}
		for try.To(e.service.ProcessResponse(ctx)).OrFatal(t) {
		}
		if len(e.updates) != 2 || e.updates[0].Id != first.Id || e.updates[1].Id != second.Id {
			t.Errorf("outcomes: %+v", e.updates)
		}
	})

	t.Run("outcomes are delivered again when a listener fails", func(t *testing.T) {
		e := setup(t, true)
		failures := 1
		e.service.UpdateListeners().Register("webhook", hook.Func[management.UpdateOutcome](
			func(context.Context, management.UpdateOutcome) error {
				if 0 < failures {
					failures -= 1
					return errors.New("webhook is down")
				}
				return nil
			},
		))
		ticket := try.To(e.service.SubmitUpdate(ctx, modify("Case", "Test Case"))).OrFatal(t)
		try.To(e.service.ProcessUpdate(ctx)).OrFatal(t)

		if _, err := e.service.ProcessResponse(ctx); err == nil {
			t.Fatal("failure of the listener is not reported")
		}
		if n := try.To(e.queue.Len(ctx, qdb.UpdateResponseChannel)).OrFatal(t); n != 1 {
			t.Fatalf("outcome is lost: queued %d", n)
		}

		if !try.To(e.service.ProcessResponse(ctx)).OrFatal(t) {
			t.Error("nothing processed")
		}
		if n := try.To(e.queue.Len(ctx, qdb.UpdateResponseChannel)).OrFatal(t); n != 0 {
			t.Errorf("queued: %d", n)
		}
		if failures != 0 || len(e.updates) != 2 || e.updates[1].Id != ticket.Id {
			t.Errorf("outcomes: %+v", e.updates)
		}
	})

	t.Run("expired outcomes are dropped when a listener fails", func(t *testing.T) {
		e := setup(t, true, management.WithResponseExpiry(time.Nanosecond))
		e.service.UpdateListeners().Register("webhook", hook.Func[management.UpdateOutcome](
			func(context.Context, management.UpdateOutcome) error {
				return errors.New("webhook is down")
			},
		))
		try.To(e.service.SubmitUpdate(ctx, modify("Case", "Test Case"))).OrFatal(t)
		try.To(e.service.ProcessUpdate(ctx)).OrFatal(t)
		time.Sleep(time.Millisecond)

		popped, err := e.service.ProcessResponse(ctx)
		if !popped || err != nil {
			t.Errorf("popped: %t, err: %v", popped, err)
		}
		if n := try.To(e.queue.Len(ctx, qdb.UpdateResponseChannel)).OrFatal(t); n != 0 {
			t.Errorf("queued: %d", n)
		}
	})

	t.Run("broken messages are dropped", func(t *testing.T) {
		e := setup(t, true)
		try.To(e.queue.Push(ctx, qdb.UpdateChannel, "not a request")).OrFatal(t)

		popped, err := e.service.ProcessUpdate(ctx)
		if !popped || err != nil {
			t.Errorf("popped: %t, err: %v", popped, err)
		}
		if n := try.To(e.queue.Len(ctx, qdb.UpdateChannel)).OrFatal(t); n != 0 {
			t.Errorf("queued: %d", n)
		}
	})

	t.Run("rolled back deployments are dropped", func(t *testing.T) {
		e := setup(t, true)
		e.triples.fail = true
		try.To(e.service.UpdateModel(ctx, modify("Case", "Test Case"))).OrFatal(t)
		ticket := try.To(e.service.SubmitDeployment(ctx, history.DeploymentRequest{ModelsToDeploy: []string{"emf:Case"}})).OrFatal(t)

		popped, err := e.service.ProcessDeployment(ctx)
		if !popped || err != nil {
			t.Errorf("popped: %t, err: %v", popped, err)
		}
		if n := try.To(e.queue.Len(ctx, qdb.DeployChannel)).OrFatal(t); n != 0 {
			t.Errorf("queued: %d", n)
		}
		if len(e.deploys) != 1 || e.deploys[0].Id != ticket.Id || e.deploys[0].Error == "" {
			t.Errorf("outcomes: %+v", e.deploys)
		}
	})
}

func TestAsync_QueueFailure(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)
	hs := try.To(history.New(
		seed(), hist_inmemory.New(),
		changeset.NewManager(changeset.DefaultRegistry()),
		&deploy.Validator{Definitions: noDefinitions{}},
		&deploy.Deployer{Definitions: noDefinitions{}, Semantic: &tripleStore{saved: map[string][]deploy.Triple{}}},
		history.WithLogger(logger),
	)).OrFatal(t)

	expected := errors.New("queue is down")
	queue := queue_mock.New()
	queue.Impl.Push = func(context.Context, string, any) (string, error) {
		return "", expected
	}
	queue.Impl.Pop = func(_ context.Context, channel string, _ func(qdb.Message) error) (bool, error) {
		return false, expected
	}
	service := management.New(hs, update.New(hs, logger), management.Async(queue), logger)

	t.Run("a failure of pushing is an error of the submission", func(t *testing.T) {
		if _, err := service.SubmitUpdate(ctx, modify("Case", "Test Case")); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := service.SubmitDeployment(ctx, history.DeploymentRequest{}); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("a failure of popping is an error of the worker", func(t *testing.T) {
		popped, err := service.ProcessResponse(ctx)
		if popped || !errors.Is(err, expected) {
			t.Errorf("popped: %t, err: %v", popped, err)
		}
	})
}
