package changeset

import (
	"errors"
	"fmt"

	"github.com/opst/modelfab/pkg/domain/model"
)

var ErrMissingOperation = errors.New("missing operation identifier")

type OperationNotFoundError struct {
	Name string
}

func (e *OperationNotFoundError) Error() string {
	return fmt.Sprintf("%s operation not found", e.Name)
}

// CollisionError tells the value has been changed by someone else
// since the requester saw it.
type CollisionError struct {
	Selector string
	Expected any
	Actual   any
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf(
		"detected value collision at %s: expected %q, but actual %q",
		e.Selector, model.ValueString(e.Expected), model.ValueString(e.Actual),
	)
}

// ValidationError tells the change is not legal for the target.
type ValidationError struct {
	Selector  string
	Operation string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s on %s is not acceptable: %s", e.Operation, e.Selector, e.Reason)
}

// ReplayError tells a recorded change cannot be applied again.
//
// The graph replayed so far no longer matches the history.
type ReplayError struct {
	Id      int64
	Version int64
	Cause   error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replaying change #%d (version %d) failed: %s", e.Id, e.Version, e.Cause)
}

func (e *ReplayError) Unwrap() error {
	return e.Cause
}
