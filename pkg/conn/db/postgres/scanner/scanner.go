// Package scanner reads pgx.Rows into typed values.
package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// Scanner reads rows as T.
//
// When T is a struct, columns are mapped into fields
//
//  1. with tag `sql:"column_name"`,
//  2. or, named as same as the column,
//  3. or, named in CamelCase of the column ("code_list" -> "CodeList").
//
// Otherwise, rows should have exactly one column, scanned into T.
//
//	rows, err := scanner.New[CodeValue]().QueryAll(
//		ctx, conn, `select "code_list", "value" from "code_value"`,
//	)
type Scanner[T any] interface {
	ScanAll(pgx.Rows) ([]T, error)
	QueryAll(context.Context, Queryer, string, ...interface{}) ([]T, error)
}

func New[T any]() Scanner[T] {
	t := reflect.TypeOf(*new(T))
	if t == nil || t.Kind() != reflect.Struct || t == reflect.TypeOf(time.Time{}) {
		return singleColumn[T]{}
	}

	fields := map[string][]int{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fields[f.Name] = f.Index
	}
	// tags take precedence over names.
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag, ok := f.Tag.Lookup("sql"); ok && f.IsExported() {
			fields[tag] = f.Index
		}
	}
	return structScanner[T]{fields: fields}
}

func camel(column string) string {
	b := &strings.Builder{}
	for _, s := range strings.Split(column, "_") {
		if s == "" {
			continue
		}
		b.WriteString(strings.ToUpper(s[:1]))
		b.WriteString(s[1:])
	}
	return b.String()
}

type structScanner[T any] struct {
	fields map[string][]int
}

func (s structScanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	columns := rows.FieldDescriptions()
	indices := make([][]int, len(columns))
	for nth, fd := range columns {
		col := string(fd.Name)
		idx, ok := s.fields[col]
		if !ok {
			idx, ok = s.fields[camel(col)]
		}
		if !ok {
			return nil, fmt.Errorf(`field for column "%s" is not found in type "%T"`, col, *new(T))
		}
		indices[nth] = idx
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		v := reflect.ValueOf(elem).Elem()
		dests := make([]any, len(indices))
		for nth, idx := range indices {
			dests[nth] = v.FieldByIndex(idx).Addr().Interface()
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	return ret, rows.Err()
}

func (s structScanner[T]) QueryAll(ctx context.Context, conn Queryer, q string, params ...interface{}) ([]T, error) {
	return queryAll[T](ctx, s, conn, q, params...)
}

type singleColumn[T any] struct{}

func (singleColumn[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	if n := len(rows.FieldDescriptions()); n != 1 {
		return nil, fmt.Errorf("%d columns can not be scanned into %T", n, *new(T))
	}
	ret := []T{}
	for rows.Next() {
		var elem T
		if err := rows.Scan(&elem); err != nil {
			return nil, err
		}
		ret = append(ret, elem)
	}
	return ret, rows.Err()
}

func (s singleColumn[T]) QueryAll(ctx context.Context, conn Queryer, q string, params ...interface{}) ([]T, error) {
	return queryAll[T](ctx, s, conn, q, params...)
}

func queryAll[T any](ctx context.Context, s Scanner[T], conn Queryer, q string, params ...interface{}) ([]T, error) {
	rows, err := conn.Query(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.ScanAll(rows)
}
