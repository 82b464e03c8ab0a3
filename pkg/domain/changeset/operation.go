package changeset

import (
	"errors"
	"fmt"

	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
)

// Observation is a value seen on a target.
type Observation struct {
	Value any

	// Local tells the value is set on the addressed node itself,
	// not inherited nor the declared default.
	Local bool
}

// Same tells two observations show the same state.
func (o Observation) Same(other Observation) bool {
	return o.Local == other.Local && model.SameValue(o.Value, other.Value)
}

// Operation knows how to apply one kind of change.
//
// Targets passed to Observed, Intended and Validate may not exist yet (see selector.Peek).
// Apply gets a target resolved for update.
type Operation interface {
	Name() string

	// Observed is the current state of the target. Collisions are detected with its value.
	Observed(models *model.Models, target selector.Target) Observation

	// Intended is the state of the target after the change.
	// When it is same as Observed, the change is a no-op.
	Intended(models *model.Models, target selector.Target, change ChangeSet) Observation

	// Validate tells the change is legal for the target.
	Validate(models *model.Models, target selector.Target, change ChangeSet) error

	Apply(models *model.Models, target selector.Target, change ChangeSet) error
}

// Unchecked is an Operation exempt from the collision check.
type Unchecked interface {
	Operation
	SkipCollisionCheck() bool
}

const (
	OpModifyAttribute  = "modifyAttribute"
	OpRestoreAttribute = "restoreAttribute"
	OpRestoreNode      = "restoreNode"
)

// ModifyAttribute sets a local value of an attribute.
func ModifyAttribute() Operation {
	return modifyAttribute{}
}

type modifyAttribute struct{}

func (modifyAttribute) Name() string { return OpModifyAttribute }

func (modifyAttribute) Observed(models *model.Models, target selector.Target) Observation {
	return observeAttribute(models, target)
}

func (modifyAttribute) Intended(_ *model.Models, _ selector.Target, change ChangeSet) Observation {
	return Observation{Value: change.NewValue, Local: true}
}

func (modifyAttribute) Validate(models *model.Models, target selector.Target, change ChangeSet) error {
	if !target.IsAttribute() {
		return errors.New("target should be an attribute")
	}
	if err := checkWritable(models, target); err != nil {
		return err
	}
	return model.CheckType(target.Meta.DataType, change.NewValue)
}

func (modifyAttribute) Apply(_ *model.Models, target selector.Target, change ChangeSet) error {
	target.Node.SetAttribute(target.Attribute, target.Meta.DataType, model.CopyValue(change.NewValue))
	return nil
}

// RestoreAttribute removes a local value of an attribute,
// so that the attribute falls back to the inherited or default value.
//
// NewValue of the change should be nil or the value restored.
func RestoreAttribute() Operation {
	return restoreAttribute{}
}

type restoreAttribute struct{}

func (restoreAttribute) Name() string { return OpRestoreAttribute }

func (restoreAttribute) Observed(models *model.Models, target selector.Target) Observation {
	return observeAttribute(models, target)
}

func (restoreAttribute) Intended(models *model.Models, target selector.Target, _ ChangeSet) Observation {
	return Observation{Value: restoredValue(models, target)}
}

func (restoreAttribute) Validate(models *model.Models, target selector.Target, change ChangeSet) error {
	if !target.IsAttribute() {
		return errors.New("target should be an attribute")
	}
	if err := checkWritable(models, target); err != nil {
		return err
	}
	if restored := restoredValue(models, target); !model.IsUnset(change.NewValue) && !model.SameValue(change.NewValue, restored) {
		return fmt.Errorf(
			"attribute would be restored to %q, not %q",
			model.ValueString(restored), model.ValueString(change.NewValue),
		)
	}
	return nil
}

func (restoreAttribute) Apply(_ *model.Models, target selector.Target, _ ChangeSet) error {
	target.Node.RemoveAttribute(target.Attribute)
	return nil
}

// RestoreNode removes a local override of a child of a definition,
// so that the same-id child of the parent definition is used again.
func RestoreNode() Operation {
	return restoreNode{}
}

type restoreNode struct{}

func (restoreNode) Name() string { return OpRestoreNode }

func (restoreNode) SkipCollisionCheck() bool { return true }

func (restoreNode) Observed(_ *model.Models, target selector.Target) Observation {
	return Observation{Local: target.Exists() && !target.Inherited()}
}

func (restoreNode) Intended(*model.Models, selector.Target, ChangeSet) Observation {
	return Observation{}
}

func (restoreNode) Validate(_ *model.Models, target selector.Target, _ ChangeSet) error {
	if target.IsAttribute() {
		return errors.New("target should be a node")
	}
	child, ok := target.Node.(*model.Child)
	if !ok {
		return errors.New("only fields, regions, transitions and groups can be restored")
	}
	for _, a := range child.Owner().Ancestors() {
		if _, ok := a.FindChild(child.Kind(), child.Id()); ok {
			return nil
		}
	}
	return fmt.Errorf("%s %s is not inherited from any parent", child.Kind(), child.Id())
}

func (restoreNode) Apply(_ *model.Models, target selector.Target, _ ChangeSet) error {
	child, ok := target.Node.(*model.Child)
	if !ok {
		return fmt.Errorf("%s is not a child of definition", target.Selector)
	}
	child.Owner().RemoveChild(child.Kind(), child.Id())
	return nil
}

func observeAttribute(models *model.Models, target selector.Target) Observation {
	if a, ok := target.Local(); ok {
		return Observation{Value: a.Value, Local: true}
	}
	return Observation{Value: restoredValue(models, target)}
}

// restoredValue is the value the attribute has without local value.
func restoredValue(models *model.Models, target selector.Target) any {
	if !target.Exists() {
		return target.Meta.Default
	}
	if target.Inherited() {
		return models.EffectiveValue(target.Node, target.Attribute)
	}
	return models.RestoredValue(target.Node, target.Attribute)
}

// checkWritable checks the read-only rule:
// read-only attributes can be changed only while empty, or on nodes never deployed.
func checkWritable(models *model.Models, target selector.Target) error {
	if !target.Meta.ReadOnly || !target.Exists() || !target.Node.Deployed() {
		return nil
	}
	if model.IsUnset(models.EffectiveValue(target.Node, target.Attribute)) {
		return nil
	}
	return fmt.Errorf("%s is read-only", target.Attribute)
}
