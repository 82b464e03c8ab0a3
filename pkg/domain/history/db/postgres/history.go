package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/modelfab/pkg/conn/db/postgres/pool"
	"github.com/opst/modelfab/pkg/db/postgres/marshal"
	"github.com/opst/modelfab/pkg/domain/changeset"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
	xe "github.com/opst/modelfab/pkg/errors"
)

type pgHistory struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgHistory{pool: pool}
}

func (h *pgHistory) Version(ctx context.Context) (int64, error) {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer conn.Release()

	var version int64
	if err := conn.QueryRow(ctx, `select "version" from "model_version"`).Scan(&version); err != nil {
		return 0, xe.Wrap(err)
	}
	return version, nil
}

func (h *pgHistory) Record(ctx context.Context, expected int64, changes []changeset.Info) (int64, error) {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var version int64
	if err := tx.QueryRow(
		ctx,
		`
		update "model_version" set "version" = "version" + 1
		where "version" = $1
		returning "version"
		`,
		expected,
	).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isConflict(err) {
			return 0, kdb.ErrStaleVersion
		}
		return 0, xe.Wrap(err)
	}

	for _, c := range changes {
		oldValue, err := marshal.ToJSONB(c.OldValue)
		if err != nil {
			return 0, xe.WrapWithNote(c.Selector, err)
		}
		newValue, err := marshal.ToJSONB(c.NewValue)
		if err != nil {
			return 0, xe.WrapWithNote(c.Selector, err)
		}
		status := c.Status
		if status == "" {
			status = changeset.Applied
		}
		if _, err := tx.Exec(
			ctx,
			`
			insert into "model_change"
				("version", "selector", "operation", "old_value", "new_value", "status", "message")
			values ($1, $2, $3, $4, $5, $6, $7)
			`,
			version, c.Selector, c.Operation, oldValue, newValue, string(status), c.Message,
		); err != nil {
			return 0, xe.Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isConflict(err) {
			return 0, kdb.ErrStaleVersion
		}
		return 0, xe.Wrap(err)
	}
	return version, nil
}

// isConflict tells err is caused by a concurrent transaction.
func isConflict(err error) bool {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return false
	}
	return pgerr.Code == pgerrcode.SerializationFailure || pgerr.Code == pgerrcode.DeadlockDetected
}

func (h *pgHistory) Changes(ctx context.Context, after int64, until int64) ([]changeset.Info, error) {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "id", "version", "selector", "operation", "old_value", "new_value", "status", "message"
		from "model_change"
		where $1 < "version" and ($2 < 0 or "version" <= $2)
		order by "id"
		`,
		after, until,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	changes := []changeset.Info{}
	for rows.Next() {
		var c changeset.Info
		var status string
		var oldValue, newValue pgtype.JSONB
		if err := rows.Scan(
			&c.Id, &c.Version, &c.Selector, &c.Operation, &oldValue, &newValue, &status, &c.Message,
		); err != nil {
			return nil, xe.Wrap(err)
		}
		c.Status = changeset.Status(status)
		if c.OldValue, err = marshal.FromJSONB(oldValue); err != nil {
			return nil, xe.Wrap(err)
		}
		if c.NewValue, err = marshal.FromJSONB(newValue); err != nil {
			return nil, xe.Wrap(err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return changes, nil
}

func (h *pgHistory) DeployedVersions(ctx context.Context) (map[string]int64, error) {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `select "node_id", "version" from "node_deployment"`)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	deployed := map[string]int64{}
	for rows.Next() {
		var id string
		var version int64
		if err := rows.Scan(&id, &version); err != nil {
			return nil, xe.Wrap(err)
		}
		deployed[id] = version
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return deployed, nil
}

func (h *pgHistory) MarkDeployed(ctx context.Context, nodeIds []string, version int64) error {
	if len(nodeIds) == 0 {
		return nil
	}

	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		insert into "node_deployment" ("node_id", "version")
		select "node_id", $2 from unnest($1::varchar[]) as "n"("node_id")
		on conflict ("node_id") do update
		set
			"version" = greatest("node_deployment"."version", excluded."version"),
			"deployed_at" = now()
		`,
		nodeIds, version,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
