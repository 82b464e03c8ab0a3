// Package postgres stores code values and label definitions in the model database.
package postgres

import (
	"context"
	"fmt"

	kpool "github.com/opst/modelfab/pkg/conn/db/postgres/pool"
	"github.com/opst/modelfab/pkg/db/postgres/marshal"
	"github.com/opst/modelfab/pkg/domain/deploy"
	xe "github.com/opst/modelfab/pkg/errors"
)

// CodeLists is a code-list store.
//
// Values are acceptable for a code-list when they are registered in the store.
type CodeLists struct {
	pool kpool.Pool
}

var _ deploy.CodeListValidator = &CodeLists{}
var _ deploy.CodeListPersister = &CodeLists{}

func NewCodeLists(pool kpool.Pool) *CodeLists {
	return &CodeLists{pool: pool}
}

func (c *CodeLists) ValidateCodeValue(ctx context.Context, value deploy.CodeValue) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	var found bool
	if err := conn.QueryRow(
		ctx,
		`select exists (select 1 from "code_value" where "code_list" = $1 and "value" = $2)`,
		value.CodeList, value.Value,
	).Scan(&found); err != nil {
		return xe.Wrap(err)
	}
	if !found {
		return fmt.Errorf("%q is not registered", value.Value)
	}
	return nil
}

// Persist registers the value, or replaces its descriptions.
func (c *CodeLists) Persist(ctx context.Context, value deploy.CodeValue) error {
	desc, err := marshal.ToJSONB(value.Descriptions)
	if err != nil {
		return xe.Wrap(err)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		insert into "code_value" ("code_list", "value", "description", "defined_in")
		values ($1, $2, $3, $4)
		on conflict ("code_list", "value") do update
		set "description" = excluded."description", "defined_in" = excluded."defined_in"
		`,
		value.CodeList, value.Value, desc, value.DefinedIn,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (c *CodeLists) Remove(ctx context.Context, value deploy.CodeValue) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`delete from "code_value" where "code_list" = $1 and "value" = $2`,
		value.CodeList, value.Value,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

// Labels is a label store.
type Labels struct {
	pool kpool.Pool
}

var _ deploy.LabelService = &Labels{}

func NewLabels(pool kpool.Pool) *Labels {
	return &Labels{pool: pool}
}

func (l *Labels) Save(ctx context.Context, label deploy.LabelDefinition) error {
	labels, err := marshal.ToJSONB(label.Labels)
	if err != nil {
		return xe.Wrap(err)
	}
	definedIn := label.DefinedIn
	if definedIn == nil {
		definedIn = []string{}
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		insert into "label" ("label_id", "labels", "defined_in") values ($1, $2, $3)
		on conflict ("label_id") do update
		set "labels" = excluded."labels", "defined_in" = excluded."defined_in"
		`,
		label.Id, labels, definedIn,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (l *Labels) Remove(ctx context.Context, labelId string) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `delete from "label" where "label_id" = $1`, labelId); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
