// Package update handles requests to change the model.
//
// A request is a batch of change sets. The batch is applied to a working copy of the
// latest graph all or nothing: when any change is rejected, or any changed node is
// not acceptable for the downstream, nothing is persisted and the version stays.
package update

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/history"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
	"github.com/opst/modelfab/pkg/domain/report"
)

// State is a step of handling a request.
type State string

const (
	Received   State = "received"
	Resolving  State = "resolving"
	Applying   State = "applying"
	Persisting State = "persisting"
	Accepted   State = "accepted"
	Rejected   State = "rejected"
)

// Request is a batch of changes.
type Request struct {
	// Id identifies the request in logs and responses. A random one is given when empty.
	Id string `json:"id,omitempty"`

	// ModelVersion is the version the requester knows.
	ModelVersion int64 `json:"modelVersion"`

	Changes []changeset.ChangeSet `json:"changes"`

	// Force applies changes even if they collide with values changed by others.
	Force bool `json:"force,omitempty"`
}

// Response tells the outcome of an accepted request.
type Response struct {
	Id string `json:"id"`

	// ModelVersion is the latest version after the request.
	ModelVersion int64 `json:"modelVersion"`

	// Changes are changes recorded after the version the requester knew,
	// including ones of this request.
	Changes []changeset.Info `json:"changes"`
}

// UpdateModelFailedError tells the batch is rejected. Nothing is persisted.
type UpdateModelFailedError struct {
	Report *report.Report
}

func (e *UpdateModelFailedError) Error() string {
	failed := e.Report.FailedEntries()
	if len(failed) == 0 && len(e.Report.GenericErrors) != 0 {
		return fmt.Sprintf("model update failed: %s", e.Report.GenericErrors[0])
	}
	return fmt.Sprintf("model update failed: %d node(s) are not acceptable", len(failed))
}

type Handler struct {
	service    *history.Service
	validators []Validator
	logger     *log.Logger
}

// New creates a Handler.
//
// validators check changed nodes before they are persisted.
func New(service *history.Service, logger *log.Logger, validators ...Validator) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, validators: validators, logger: logger}
}

func (h *Handler) transit(id string, state State, format string, args ...any) {
	h.logger.Printf("[%s] %s: %s", id, state, fmt.Sprintf(format, args...))
}

// Handle applies the batch and persists it as a new version.
//
// # Returns
//
// - Response: the new version and changes after the version the requester knew.
//
// - error: *UpdateModelFailedError when the batch is rejected.
// Other errors are failures of the infrastructure.
//
// Once applying starts, cancellation of ctx does not interrupt the batch.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	id := req.Id
	if id == "" {
		id = uuid.NewString()
	}
	h.transit(id, Received, "%d change(s) based on version %d (force: %t)", len(req.Changes), req.ModelVersion, req.Force)
	if err := ctx.Err(); err != nil {
		h.transit(id, Rejected, "%s", err)
		return Response{}, err
	}
	ctx = context.WithoutCancel(ctx)

	batch := make([]changeset.Info, len(req.Changes))
	for i, c := range req.Changes {
		batch[i] = changeset.Info{ChangeSet: c, Status: changeset.Pending}
	}

	published, err := h.service.Apply(ctx, func(working *model.Models) ([]changeset.Info, error) {
		h.transit(id, Resolving, "version %d", working.Version())
		r := report.New(working.Version())
		for _, c := range batch {
			if _, err := selector.Parse(c.Selector); err != nil {
				r.Fail(c.Selector, "", "%s", err)
			}
		}
		if !r.IsValid() {
			return nil, &UpdateModelFailedError{Report: r}
		}

		h.transit(id, Applying, "version %d", working.Version())
		var applied []changeset.Info
		h.service.Manager().Execute(
			working, batch,
			func(_ *model.Models, info changeset.Info) {
				applied = append(applied, info)
			},
			func(err error, info changeset.Info) bool {
				var ce *changeset.CollisionError
				if errors.As(err, &ce) && req.Force {
					h.logger.Printf("[%s] forced: %s", id, err)
					return true
				}
				nodeId, kind := rootOf(info)
				r.Fail(nodeId, kind, "%s", err)
				return false
			},
		)
		if !r.IsValid() {
			return nil, &UpdateModelFailedError{Report: r}
		}

		for _, n := range changedNodes(working, applied) {
			for _, v := range h.validators {
				if err := v.Validate(ctx, working, n, r); err != nil {
					return nil, err
				}
			}
		}
		if !r.IsValid() {
			return nil, &UpdateModelFailedError{Report: r}
		}

		h.transit(id, Persisting, "%d change(s) applied, %d no-op", len(applied), len(batch)-len(applied))
		return applied, nil
	})
	if err != nil {
		h.transit(id, Rejected, "%s", err)
		return Response{}, err
	}

	changes, err := h.service.Changes(ctx, req.ModelVersion, kdb.Latest)
	if err != nil {
		return Response{}, err
	}
	h.transit(id, Accepted, "version %d", published.Version())
	return Response{Id: id, ModelVersion: published.Version(), Changes: changes}, nil
}

// rootOf tells the top-level node the change belongs to, for reports.
func rootOf(info changeset.Info) (string, string) {
	root, err := info.Root()
	if err != nil {
		return info.Selector, ""
	}
	return root.Value, root.Key
}

// changedNodes returns top-level nodes changed by applied changes, in the order first changed.
func changedNodes(models *model.Models, applied []changeset.Info) []model.Node {
	var out []model.Node
	seen := map[string]struct{}{}
	for _, info := range applied {
		root, err := info.Root()
		if err != nil {
			continue
		}
		kind, ok := model.ParseKind(root.Key)
		if !ok {
			continue
		}
		key := root.Key + "=" + root.Value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if n, ok := models.TopLevel(kind, root.Value); ok {
			out = append(out, n)
		}
	}
	return out
}
