// Package history keeps the model graph in step with the change history, and
// deploys recorded changes.
//
// The graph of the process is the seed model advanced by replaying the history.
// Service publishes it through a model.Holder, records new batches with an
// optimistic version check, and builds snapshots of past versions for deployments.
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/deploy"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/report"
	xe "github.com/opst/modelfab/pkg/errors"
)

// ErrUnknownVersion tells the version has not been recorded yet.
var ErrUnknownVersion = errors.New("unknown model version")

// DefaultSnapshotCacheSize is the number of snapshots kept when no size is configured.
const DefaultSnapshotCacheSize = 16

// maxAttempts bounds retries of a batch which lost the race against other writers.
const maxAttempts = 3

// DeploymentRequest asks to deploy changed nodes as they were at a version.
type DeploymentRequest struct {
	// ModelsToDeploy are ids of top-level nodes.
	ModelsToDeploy []string `json:"modelsToDeploy"`

	// Version pins the deployment. Changes recorded after it are not deployed.
	// Zero means the current version.
	Version int64 `json:"version,omitempty"`
}

type Service struct {
	base    *model.Models
	holder  *model.Holder
	db      kdb.Interface
	manager *changeset.Manager

	snapshots *lru.Cache[int64, *model.Models]

	validator *deploy.Validator
	deployer  *deploy.Deployer
	deploying sync.Mutex

	logger *log.Logger
}

type Option func(*Service) error

// WithSnapshotCache sets the number of snapshots to be cached.
func WithSnapshotCache(size int) Option {
	return func(s *Service) error {
		c, err := lru.New[int64, *model.Models](size)
		if err != nil {
			return err
		}
		s.snapshots = c
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// New creates a Service.
//
// # Args
//
// - base: the seed model, at version 0. It is not changed.
//
// - db: the change history.
//
// - manager: used to replay changes.
//
// - validator, deployer: downstream of deployments.
func New(
	base *model.Models,
	db kdb.Interface,
	manager *changeset.Manager,
	validator *deploy.Validator,
	deployer *deploy.Deployer,
	options ...Option,
) (*Service, error) {
	frozen := base.Clone()
	frozen.SetVersion(0)

	s := &Service{
		base:      frozen,
		holder:    model.NewHolder(frozen.Clone()),
		db:        db,
		manager:   manager,
		validator: validator,
		deployer:  deployer,
		logger:    log.Default(),
	}
	for _, opt := range append([]Option{WithSnapshotCache(DefaultSnapshotCacheSize)}, options...) {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Manager is the operation manager which the service replays changes with.
func (s *Service) Manager() *changeset.Manager {
	return s.manager
}

// Models returns the latest graph, catching up with the history first.
//
// The returned graph must not be mutated.
func (s *Service) Models(ctx context.Context) (*model.Models, error) {
	var latest *model.Models
	err := s.holder.Update(func(current *model.Models) (*model.Models, error) {
		caughtUp, err := s.catchUp(ctx, current)
		if err != nil {
			return nil, err
		}
		latest = caughtUp
		if caughtUp == current {
			return nil, nil
		}
		return caughtUp, nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// Current returns the graph published last, without looking at the history.
func (s *Service) Current() *model.Models {
	return s.holder.Current()
}

// Apply runs a batch on a working copy of the latest graph, and publishes it.
//
// fn applies changes to the working copy and returns the applied ones.
// They are recorded as a new version. When fn returns no changes, nothing is recorded
// and the version stays.
//
// When another process records a version first, the batch is run again on the new
// latest graph, a bounded number of times.
//
// Batches are serialized in this process.
func (s *Service) Apply(ctx context.Context, fn func(working *model.Models) ([]changeset.Info, error)) (*model.Models, error) {
	var published *model.Models
	err := s.holder.Update(func(current *model.Models) (*model.Models, error) {
		for attempt := 1; ; attempt++ {
			latest, err := s.catchUp(ctx, current)
			if err != nil {
				return nil, err
			}

			working := latest.Clone()
			applied, err := fn(working)
			if err != nil {
				return nil, err
			}
			if len(applied) == 0 {
				published = latest
				return latest, nil
			}

			version, err := s.RecordChanges(ctx, latest.Version(), applied)
			if errors.Is(err, kdb.ErrStaleVersion) && attempt < maxAttempts {
				s.logger.Printf(
					"model version %d is stale (attempt %d/%d). retrying.", latest.Version(), attempt, maxAttempts,
				)
				current = latest
				continue
			}
			if err != nil {
				return nil, err
			}
			working.SetVersion(version)
			published = working
			return working, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// RecordChanges appends a batch as a new version.
//
// kdb.ErrStaleVersion is returned when the current version is not expected.
func (s *Service) RecordChanges(ctx context.Context, expected int64, batch []changeset.Info) (int64, error) {
	v, err := s.db.Record(ctx, expected, batch)
	if err != nil {
		if errors.Is(err, kdb.ErrStaleVersion) {
			return 0, err
		}
		return 0, xe.Wrap(err)
	}
	return v, nil
}

// Changes returns recorded changes in versions (after, until].
// Pass kdb.Latest as until for no upper bound.
func (s *Service) Changes(ctx context.Context, after int64, until int64) ([]changeset.Info, error) {
	changes, err := s.db.Changes(ctx, after, until)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return changes, nil
}

// catchUp returns current advanced to the latest recorded version, with nodes
// deployed so far marked as deployed.
//
// current is returned as it is when it is the latest.
func (s *Service) catchUp(ctx context.Context, current *model.Models) (*model.Models, error) {
	latest, err := s.db.Version(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if latest < current.Version() {
		return nil, xe.Wrap(fmt.Errorf(
			"model version in history (%d) is older than in process (%d)", latest, current.Version(),
		))
	}
	deployed, err := s.db.DeployedVersions(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	next := current
	if latest != current.Version() {
		changes, err := s.Changes(ctx, current.Version(), latest)
		if err != nil {
			return nil, err
		}
		next = current.Clone()
		if err := s.manager.Replay(next, changes); err != nil {
			return nil, xe.Wrap(err)
		}
		next.SetVersion(latest)
	}

	if ids := next.Undeployed(nodeIds(deployed)...); len(ids) != 0 {
		if next == current {
			next = current.Clone()
		}
		next.MarkDeployed(ids...)
	}
	return next, nil
}

// Snapshot returns the graph as it was at the version.
//
// Nodes deployed so far are marked as deployed. The returned graph is a copy owned by the caller.
func (s *Service) Snapshot(ctx context.Context, version int64) (*model.Models, error) {
	deployed, err := s.db.DeployedVersions(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return s.snapshot(ctx, version, deployed)
}

func (s *Service) snapshot(ctx context.Context, version int64, deployed map[string]int64) (*model.Models, error) {
	replayed, err := s.replayed(ctx, version)
	if err != nil {
		return nil, err
	}
	out := replayed.Clone()
	out.MarkDeployed(nodeIds(deployed)...)
	return out, nil
}

// replayed returns the base graph with changes until the version replayed.
//
// It starts from the nearest cached snapshot older than the version.
func (s *Service) replayed(ctx context.Context, version int64) (*model.Models, error) {
	if version == 0 {
		return s.base, nil
	}
	if m, ok := s.snapshots.Get(version); ok {
		return m, nil
	}

	latest, err := s.db.Version(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if version < 0 || latest < version {
		return nil, fmt.Errorf("%w: %d (latest: %d)", ErrUnknownVersion, version, latest)
	}

	from := s.base
	keys := s.snapshots.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	for _, k := range keys {
		if k >= version {
			continue
		}
		if m, ok := s.snapshots.Peek(k); ok {
			from = m
			break
		}
	}

	changes, err := s.Changes(ctx, from.Version(), version)
	if err != nil {
		return nil, err
	}
	m := from.Clone()
	if err := s.manager.Replay(m, changes); err != nil {
		return nil, xe.Wrap(err)
	}
	m.SetVersion(version)
	s.snapshots.Add(version, m)
	return m, nil
}

// candidates lists deployment candidates at the version.
func (s *Service) candidates(ctx context.Context, version int64) (*model.Models, []deploy.Candidate, map[string]int64, error) {
	deployed, err := s.db.DeployedVersions(ctx)
	if err != nil {
		return nil, nil, nil, xe.Wrap(err)
	}
	snapshot, err := s.snapshot(ctx, version, deployed)
	if err != nil {
		return nil, nil, nil, err
	}
	changes, err := s.Changes(ctx, 0, version)
	if err != nil {
		return nil, nil, nil, err
	}
	return snapshot, deploy.Candidates(snapshot, changes, deployed), deployed, nil
}

// ValidateDeploymentCandidates validates nodes changed since they were deployed,
// at the current version.
//
// Nothing is changed. When nothing has changed, the report is empty.
func (s *Service) ValidateDeploymentCandidates(ctx context.Context) (*report.Report, error) {
	version, err := s.db.Version(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	snapshot, cands, _, err := s.candidates(ctx, version)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return report.New(version), nil
	}
	r := s.validator.Validate(ctx, snapshot, cands)
	r.Sort()
	return r, nil
}

// DeployChanges deploys requested nodes as they were at the pinned version.
//
// The report tells the result of the validation. When it is not valid, nothing is deployed.
// When an export fails after validation, *deploy.RollbackedError is returned.
//
// Deployments are serialized in this process.
func (s *Service) DeployChanges(ctx context.Context, req DeploymentRequest) (*report.Report, error) {
	s.deploying.Lock()
	defer s.deploying.Unlock()

	version := req.Version
	if version == 0 {
		v, err := s.db.Version(ctx)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		version = v
	}
	if len(req.ModelsToDeploy) == 0 {
		return report.New(version), nil
	}

	snapshot, cands, deployed, err := s.candidates(ctx, version)
	if err != nil {
		return nil, err
	}
	selected, unknown := deploy.Select(cands, req.ModelsToDeploy)

	r := report.New(version)
	for _, id := range unknown {
		r.Warn(id, "", "no changes to be deployed at version %d", version)
	}
	if len(selected) != 0 {
		r.Merge(s.validator.Validate(ctx, snapshot, selected))
	}
	r.Sort()
	if !r.IsValid() || len(selected) == 0 {
		return r, nil
	}

	previous := func(ctx context.Context, nodeId string) (*model.Models, error) {
		if v, ok := deployed[nodeId]; ok {
			return s.snapshot(ctx, v, deployed)
		}
		if _, ok := s.base.Node(nodeId); ok {
			return s.base, nil
		}
		return nil, nil
	}
	if err := s.deployer.Deploy(ctx, snapshot, selected, previous); err != nil {
		return r, err
	}

	ids := deploy.Covered(selected)
	if err := s.db.MarkDeployed(context.WithoutCancel(ctx), ids, version); err != nil {
		return r, xe.Wrap(err)
	}
	err = s.holder.Update(func(current *model.Models) (*model.Models, error) {
		next := current.Clone()
		next.MarkDeployed(ids...)
		return next, nil
	})
	if err != nil {
		return r, err
	}
	s.logger.Printf("deployed %v at version %d", ids, version)
	return r, nil
}

func nodeIds[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
