package db

import (
	"context"
	"errors"

	"github.com/opst/modelfab/pkg/domain/changeset"
)

// ErrStaleVersion tells the model has been advanced by someone else.
var ErrStaleVersion = errors.New("model version is stale")

// Latest is the "until" of Changes meaning no upper bound.
const Latest int64 = -1

// Interface is the change history and the version counter of the model.
type Interface interface {
	// Version returns the current model version. It is 0 before any changes are recorded.
	Version(ctx context.Context) (int64, error)

	// Record appends changes as a new version.
	//
	// # Args
	//
	// - context.Context
	//
	// - int64: the version the changes are based on.
	//
	// - []changeset.Info: changes to be recorded, in order.
	//
	// # Returns
	//
	// - int64: the new version, which is expected + 1.
	//
	// - error: ErrStaleVersion when the current version is not expected.
	// Nothing is recorded then.
	Record(ctx context.Context, expected int64, changes []changeset.Info) (int64, error)

	// Changes returns changes recorded in versions (after, until], ordered by id.
	//
	// Pass Latest as until for no upper bound.
	Changes(ctx context.Context, after int64, until int64) ([]changeset.Info, error)

	// DeployedVersions returns the last version each top-level node is deployed at.
	DeployedVersions(ctx context.Context) (map[string]int64, error)

	// MarkDeployed records nodes are deployed at the version.
	//
	// Versions of nodes never go back.
	MarkDeployed(ctx context.Context, nodeIds []string, version int64) error
}
