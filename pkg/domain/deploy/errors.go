package deploy

import "fmt"

// RollbackedError tells a deployment failed after validation, and
// what has been written to downstream in the deployment is rolled back.
//
// The deployment should not be retried as it is.
type RollbackedError struct {
	// NodeId is the node being exported when the deployment failed.
	NodeId string

	Cause error

	// RollbackErr is not nil when some writes could not be rolled back.
	RollbackErr error
}

func (e *RollbackedError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf(
			"deployment failed at %s: %s (rollback failed: %s)", e.NodeId, e.Cause, e.RollbackErr,
		)
	}
	return fmt.Sprintf("deployment failed at %s and rolled back: %s", e.NodeId, e.Cause)
}

func (e *RollbackedError) Unwrap() error {
	return e.Cause
}
