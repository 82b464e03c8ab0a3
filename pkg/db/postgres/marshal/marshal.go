// Package marshal converts Go values to and from postgres column types.
package marshal

import (
	"encoding/json"

	"github.com/jackc/pgtype"
)

// ToJSONB encodes v for a jsonb column. nil is sql null.
func ToJSONB(v any) (pgtype.JSONB, error) {
	if v == nil {
		return pgtype.JSONB{Status: pgtype.Null}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return pgtype.JSONB{}, err
	}
	return pgtype.JSONB{Bytes: b, Status: pgtype.Present}, nil
}

// FromJSONB decodes a jsonb column into a generic value
// (nil, bool, float64, string, []any or map[string]any).
func FromJSONB(j pgtype.JSONB) (any, error) {
	var v any
	if err := FromJSONBTo(j, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// FromJSONBTo decodes a jsonb column into dest. sql null leaves dest untouched.
func FromJSONBTo(j pgtype.JSONB, dest any) error {
	if j.Status != pgtype.Present {
		return nil
	}
	return json.Unmarshal(j.Bytes, dest)
}
