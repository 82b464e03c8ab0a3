// Package management is the entry point of model operations for the API server,
// worker loops and the CLI.
//
// Requests are either processed at once (UpdateModel, DeployChanges), or submitted
// through a Dispatcher (SubmitUpdate, SubmitDeployment). With the Async dispatcher,
// submitted requests are queued and processed by worker loops calling ProcessUpdate,
// ProcessDeployment and ProcessResponse. With the Sync dispatcher, they are processed
// in the caller in the same way.
package management

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/deploy"
	"github.com/opst/modelfab/pkg/domain/history"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
	qdb "github.com/opst/modelfab/pkg/domain/queue/db"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
	"github.com/opst/modelfab/pkg/hook"
	"github.com/opst/modelfab/pkg/metrics"
)

// UpdateOutcome is the result of an update request, delivered to listeners.
type UpdateOutcome struct {
	Id       string           `json:"id"`
	Accepted bool             `json:"accepted"`
	Response *update.Response `json:"response,omitempty"`

	// Report tells why the request is rejected.
	Report *report.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// DeployOutcome is the result of a deployment request, delivered to listeners.
type DeployOutcome struct {
	Id       string                    `json:"id"`
	Request  history.DeploymentRequest `json:"request"`
	Deployed bool                      `json:"deployed"`
	Report   *report.Report            `json:"report,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

type Service struct {
	history    *history.Service
	handler    *update.Handler
	dispatcher Dispatcher
	queue      qdb.Interface

	updates *hook.Registry[UpdateOutcome]
	deploys *hook.Registry[DeployOutcome]

	// queued outcomes of updates older than this are dropped when listeners fail.
	responseExpiry time.Duration

	logger *log.Logger
}

// DefaultResponseExpiry is the expiry of queued outcomes of updates, when not configured.
const DefaultResponseExpiry = 24 * time.Hour

type Option func(*Service)

// WithResponseExpiry sets how long a queued outcome of an update is delivered again
// to listeners which failed on it.
func WithResponseExpiry(d time.Duration) Option {
	return func(s *Service) {
		s.responseExpiry = d
	}
}

// New creates a Service.
//
// mode is Sync() or Async(queue).
func New(hist *history.Service, handler *update.Handler, mode Mode, logger *log.Logger, options ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		history:        hist,
		handler:        handler,
		updates:        hook.NewRegistry[UpdateOutcome](),
		deploys:        hook.NewRegistry[DeployOutcome](),
		responseExpiry: DefaultResponseExpiry,
		logger:         logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.dispatcher = mode(s)
	return s
}

// UpdateListeners are notified of outcomes of update requests.
func (s *Service) UpdateListeners() *hook.Registry[UpdateOutcome] {
	return s.updates
}

// DeployListeners are notified of outcomes of deployment requests.
func (s *Service) DeployListeners() *hook.Registry[DeployOutcome] {
	return s.deploys
}

// Models returns the latest graph. It must not be mutated.
func (s *Service) Models(ctx context.Context) (*model.Models, error) {
	m, err := s.history.Models(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ModelVersion.Set(float64(m.Version()))
	return m, nil
}

// Changes returns changes recorded after the version.
func (s *Service) Changes(ctx context.Context, after int64) ([]changeset.Info, error) {
	return s.history.Changes(ctx, after, kdb.Latest)
}

// Resolve looks up the selector on the latest graph, which is returned with the target.
func (s *Service) Resolve(ctx context.Context, sel string) (*model.Models, selector.Target, error) {
	m, err := s.Models(ctx)
	if err != nil {
		return nil, selector.Target{}, err
	}
	parsed, err := selector.Parse(sel)
	if err != nil {
		return nil, selector.Target{}, err
	}
	t, err := selector.Resolve(m, parsed)
	if err != nil {
		return nil, selector.Target{}, err
	}
	return m, t, nil
}

// UpdateModel applies the update request at once.
//
// Rejection is *update.UpdateModelFailedError. Listeners are notified of the outcome.
func (s *Service) UpdateModel(ctx context.Context, req update.Request) (update.Response, error) {
	start := time.Now()
	resp, err := s.handler.Handle(ctx, req)

	outcome := UpdateOutcome{Id: req.Id}
	var failed *update.UpdateModelFailedError
	label := metrics.Accepted
	switch {
	case err == nil:
		outcome.Id = resp.Id
		outcome.Accepted = true
		outcome.Response = &resp
		metrics.ModelVersion.Set(float64(resp.ModelVersion))
	case errors.As(err, &failed):
		label = metrics.Rejected
		outcome.Report = failed.Report
		outcome.Error = err.Error()
	default:
		metrics.Updates.WithLabelValues(metrics.Failed).Inc()
		return resp, err
	}
	metrics.Updates.WithLabelValues(label).Inc()
	metrics.UpdateDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if _, derr := s.dispatcher.Dispatch(context.WithoutCancel(ctx), qdb.UpdateResponseChannel, outcome); derr != nil {
		s.logger.Printf("outcome of update %s is not delivered: %s", outcome.Id, derr)
	}
	return resp, err
}

// SubmitUpdate hands the update request to the dispatcher.
//
// The ticket id is used as the request id when the request has none,
// so that the outcome can be matched with the ticket.
func (s *Service) SubmitUpdate(ctx context.Context, req update.Request) (Ticket, error) {
	return s.dispatcher.Dispatch(ctx, qdb.UpdateChannel, req)
}

// ValidateDeploymentCandidates validates nodes changed since they were deployed.
func (s *Service) ValidateDeploymentCandidates(ctx context.Context) (*report.Report, error) {
	return s.history.ValidateDeploymentCandidates(ctx)
}

// DeployChanges deploys at once. Listeners are notified of the outcome.
func (s *Service) DeployChanges(ctx context.Context, req history.DeploymentRequest) (*report.Report, error) {
	return s.deployChanges(ctx, "", req)
}

func (s *Service) deployChanges(ctx context.Context, id string, req history.DeploymentRequest) (*report.Report, error) {
	r, err := s.history.DeployChanges(ctx, req)

	outcome := DeployOutcome{Id: id, Request: req, Report: r}
	var rollbacked *deploy.RollbackedError
	switch {
	case err == nil && r.IsValid():
		outcome.Deployed = !r.IsEmpty()
		metrics.Deployments.WithLabelValues(metrics.Deployed).Inc()
		metrics.DeployedNodes.Add(float64(len(r.Nodes)))
	case err == nil:
		metrics.Deployments.WithLabelValues(metrics.Invalid).Inc()
	case errors.As(err, &rollbacked):
		outcome.Error = err.Error()
		metrics.Deployments.WithLabelValues(metrics.RolledBack).Inc()
		s.logger.Printf("deployment is rolled back: %s", err)
	default:
		metrics.Deployments.WithLabelValues(metrics.Failed).Inc()
		return r, err
	}

	if nerr := s.deploys.Notify(context.WithoutCancel(ctx), outcome); nerr != nil {
		s.logger.Printf("listeners of deployments failed: %s", nerr)
	}
	return r, err
}

// SubmitDeployment hands the deployment request to the dispatcher.
func (s *Service) SubmitDeployment(ctx context.Context, req history.DeploymentRequest) (Ticket, error) {
	return s.dispatcher.Dispatch(ctx, qdb.DeployChannel, req)
}

// ProcessUpdate processes one queued update request.
//
// It returns false when nothing is queued, or when the service is not queued.
func (s *Service) ProcessUpdate(ctx context.Context) (bool, error) {
	return s.process(ctx, qdb.UpdateChannel)
}

// ProcessDeployment processes one queued deployment request.
func (s *Service) ProcessDeployment(ctx context.Context) (bool, error) {
	return s.process(ctx, qdb.DeployChannel)
}

// ProcessResponse delivers one queued outcome of an update to listeners.
//
// When a listener fails, the outcome stays queued and is delivered to all listeners
// again, until it expires.
func (s *Service) ProcessResponse(ctx context.Context) (bool, error) {
	return s.process(ctx, qdb.UpdateResponseChannel)
}

// process pops a message of the channel.
//
// A message whose handling failed goes back to the queue, and the error is returned.
// Dropped messages are logged, and not reported as errors.
func (s *Service) process(ctx context.Context, channel string) (bool, error) {
	if s.queue == nil {
		return false, nil
	}
	popped, err := s.queue.Pop(ctx, channel, func(m qdb.Message) error {
		return s.handle(ctx, m)
	})
	switch {
	case err == nil:
		if popped {
			metrics.QueueMessages.WithLabelValues(channel, metrics.Processed).Inc()
		}
		return popped, nil
	case qdb.IsDropped(err):
		metrics.QueueMessages.WithLabelValues(channel, metrics.Dropped).Inc()
		s.logger.Printf("%s: %s", channel, err)
		return true, nil
	default:
		metrics.QueueMessages.WithLabelValues(channel, metrics.Retried).Inc()
		return popped, err
	}
}

// handle processes a message of any channel.
//
// Returned errors other than dropped ones mean the message should be retried.
func (s *Service) handle(ctx context.Context, m qdb.Message) error {
	switch m.Channel {
	case qdb.UpdateChannel:
		var req update.Request
		if err := m.Decode(&req); err != nil {
			return qdb.Drop(err)
		}
		if req.Id == "" {
			req.Id = m.Id
		}
		_, err := s.UpdateModel(ctx, req)
		var failed *update.UpdateModelFailedError
		if errors.As(err, &failed) {
			return nil
		}
		return err

	case qdb.UpdateResponseChannel:
		var outcome UpdateOutcome
		if err := m.Decode(&outcome); err != nil {
			return qdb.Drop(err)
		}
		if err := s.updates.Notify(ctx, outcome); err != nil {
			err = fmt.Errorf("listeners of updates failed on %s: %w", outcome.Id, err)
			if !m.EnqueuedAt.IsZero() && s.responseExpiry < time.Since(m.EnqueuedAt) {
				return qdb.Drop(err)
			}
			return err
		}
		return nil

	case qdb.DeployChannel:
		var req history.DeploymentRequest
		if err := m.Decode(&req); err != nil {
			return qdb.Drop(err)
		}
		_, err := s.deployChanges(ctx, m.Id, req)
		var rollbacked *deploy.RollbackedError
		if errors.As(err, &rollbacked) {
			return qdb.Drop(err)
		}
		return err
	}
	return qdb.Drop(errors.New("unknown channel: " + m.Channel))
}
