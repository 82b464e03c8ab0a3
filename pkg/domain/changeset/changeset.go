// Package changeset applies change sets to a model graph.
//
// A change set is one named mutation of a node or an attribute addressed by a selector.
// Operations (the strategies which know how to apply one kind of change) are looked up
// by name from a Registry, and Manager runs a batch of change sets through them,
// detecting collisions with concurrent edits.
package changeset

import (
	"github.com/opst/modelfab/pkg/domain/model/selector"
)

// ChangeSet is one requested mutation.
type ChangeSet struct {
	Selector  string `json:"selector"`
	Operation string `json:"operation"`

	// OldValue is the value the requester saw. nil means
	// the requester saw no value of its own (unset, or inherited/default one).
	OldValue any `json:"oldValue,omitempty"`

	NewValue any `json:"newValue"`
}

// Root tells the top-level node the change belongs to.
func (c ChangeSet) Root() (selector.Segment, error) {
	sel, err := selector.Parse(c.Selector)
	if err != nil {
		return selector.Segment{}, err
	}
	return sel.Root(), nil
}

type Status string

const (
	Pending  Status = "pending"
	Applied  Status = "applied"
	Rejected Status = "rejected"
)

// Info is a ChangeSet with its context.
//
// This is the unit recorded in the change history.
type Info struct {
	// Id is the sequence number given when recorded. Zero before recorded.
	Id int64 `json:"id,omitempty"`

	ChangeSet

	// Version is the model version the change is recorded in.
	Version int64  `json:"version,omitempty"`
	Status  Status `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func (i Info) WithStatus(status Status, message string) Info {
	i.Status = status
	i.Message = message
	return i
}
