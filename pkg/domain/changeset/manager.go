package changeset

import (
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
)

// OnApplied is called after a change is applied to the graph.
type OnApplied func(models *model.Models, info Info)

// OnRejected is called when a change cannot be applied as it is.
//
// For *CollisionError, returning true forces the change to be applied.
// For other errors the return value is ignored: the change is skipped.
type OnRejected func(err error, info Info) bool

type Manager struct {
	registry *Registry
}

func NewManager(registry *Registry) *Manager {
	return &Manager{registry: registry}
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// Execute applies changes to models in the order supplied.
//
// Each change ends in one of:
//
// - applied: onApplied is called.
//
// - rejected: onRejected is called with ErrMissingOperation, *OperationNotFoundError,
// a selector error, *CollisionError or *ValidationError.
//
// - no-op: the target is already in the intended state. No callbacks are called.
//
// A rejected change never stops the batch.
// Models is changed in place, so pass a working copy when the batch may be discarded.
func (m *Manager) Execute(models *model.Models, changes []Info, onApplied OnApplied, onRejected OnRejected) {
	if onApplied == nil {
		onApplied = func(*model.Models, Info) {}
	}
	if onRejected == nil {
		onRejected = func(error, Info) bool { return false }
	}

	for _, info := range changes {
		m.execute(models, info, onApplied, onRejected)
	}
}

func (m *Manager) execute(models *model.Models, info Info, onApplied OnApplied, onRejected OnRejected) {
	reject := func(err error) bool {
		return onRejected(err, info.WithStatus(Rejected, err.Error()))
	}

	op, err := m.registry.Lookup(info.Operation)
	if err != nil {
		reject(err)
		return
	}

	sel, err := selector.Parse(info.Selector)
	if err != nil {
		reject(err)
		return
	}
	target, err := selector.Peek(models, sel)
	if err != nil {
		reject(err)
		return
	}

	observed := op.Observed(models, target)
	if observed.Same(op.Intended(models, target, info.ChangeSet)) {
		return
	}

	if u, ok := op.(Unchecked); !ok || !u.SkipCollisionCheck() {
		if collides(observed, info.OldValue) {
			force := reject(&CollisionError{
				Selector: info.Selector, Expected: info.OldValue, Actual: observed.Value,
			})
			if !force {
				return
			}
		}
	}

	invalid := func(err error) {
		reject(&ValidationError{Selector: info.Selector, Operation: op.Name(), Reason: err.Error()})
	}
	if err := op.Validate(models, target, info.ChangeSet); err != nil {
		invalid(err)
		return
	}

	target, err = selector.ResolveForUpdate(models, sel)
	if err != nil {
		reject(err)
		return
	}
	if err := op.Apply(models, target, info.ChangeSet); err != nil {
		invalid(err)
		return
	}
	onApplied(models, info.WithStatus(Applied, ""))
}

// Replay applies recorded changes to models again, in the order supplied.
//
// Recorded changes have been accepted once: neither collisions nor validations
// are checked, and changes recorded as rejected are passed over.
// The first change which cannot be applied stops the replay with *ReplayError.
func (m *Manager) Replay(models *model.Models, changes []Info) error {
	for _, info := range changes {
		if info.Status != "" && info.Status != Applied {
			continue
		}
		if err := m.replay(models, info); err != nil {
			return &ReplayError{Id: info.Id, Version: info.Version, Cause: err}
		}
	}
	return nil
}

func (m *Manager) replay(models *model.Models, info Info) error {
	op, err := m.registry.Lookup(info.Operation)
	if err != nil {
		return err
	}
	sel, err := selector.Parse(info.Selector)
	if err != nil {
		return err
	}
	target, err := selector.Peek(models, sel)
	if err != nil {
		return err
	}
	if op.Observed(models, target).Same(op.Intended(models, target, info.ChangeSet)) {
		return nil
	}
	target, err = selector.ResolveForUpdate(models, sel)
	if err != nil {
		return err
	}
	return op.Apply(models, target, info.ChangeSet)
}

// collides tells the observed state is not what the requester saw.
//
// Without old value, the requester expects no local value is there.
func collides(observed Observation, oldValue any) bool {
	if model.IsUnset(oldValue) {
		return observed.Local && !model.IsUnset(observed.Value)
	}
	return !model.SameValue(observed.Value, oldValue)
}
