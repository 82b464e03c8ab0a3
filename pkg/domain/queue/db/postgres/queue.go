package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	kpool "github.com/opst/modelfab/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/modelfab/pkg/domain/queue/db"
	xe "github.com/opst/modelfab/pkg/errors"
)

type pgQueue struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgQueue{pool: pool}
}

func (q *pgQueue) Push(ctx context.Context, channel string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", xe.Wrap(err)
	}
	id := uuid.NewString()

	conn, err := q.pool.Acquire(ctx)
	if err != nil {
		return "", xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`insert into "queue_message" ("id", "channel", "payload") values ($1, $2, $3)`,
		id, channel, pgtype.JSONB{Bytes: b, Status: pgtype.Present},
	); err != nil {
		return "", xe.Wrap(err)
	}
	return id, nil
}

func (q *pgQueue) Pop(ctx context.Context, channel string, handler func(kdb.Message) error) (bool, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	// pop the head of the channel. other transactions skip it while this is running.
	rows, err := tx.Query(
		ctx,
		`
		with "head" as (
			select "seq" from "queue_message"
			where "channel" = $1
			order by "seq"
			limit 1
			for update skip locked
		)
		delete from "queue_message"
		where "seq" in (select "seq" from "head")
		returning "id"::text, "channel", "payload", "enqueued_at"
		`,
		channel,
	)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer rows.Close()

	var msg kdb.Message
	pop := false
	for rows.Next() {
		var payload pgtype.JSONB
		var enqueuedAt time.Time
		if err := rows.Scan(&msg.Id, &msg.Channel, &payload, &enqueuedAt); err != nil {
			return false, xe.Wrap(err)
		}
		msg.Payload = payload.Bytes
		msg.EnqueuedAt = enqueuedAt
		pop = true
	}
	if err := rows.Err(); err != nil {
		return false, xe.Wrap(err)
	}
	rows.Close()

	if !pop {
		return false, nil
	}

	var herr error
	if handler != nil {
		herr = handler(msg)
		if herr != nil && !kdb.IsDropped(herr) {
			return false, herr
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, xe.Wrap(err)
	}
	return true, herr
}

func (q *pgQueue) Len(ctx context.Context, channel string) (int, error) {
	conn, err := q.pool.Acquire(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer conn.Release()

	var n int
	if err := conn.QueryRow(
		ctx, `select count(*) from "queue_message" where "channel" = $1`, channel,
	).Scan(&n); err != nil {
		return 0, xe.Wrap(err)
	}
	return n, nil
}
