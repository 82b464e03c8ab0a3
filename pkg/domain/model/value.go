package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Attribute is a named value set on a node.
type Attribute struct {
	Name     string `json:"name" yaml:"name"`
	DataType string `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	Value    any    `json:"value" yaml:"value"`
}

// IsUnset tells v means "no value": nil, or empty string, or empty map/slice.
func IsUnset(v any) bool {
	switch vv := normalize(v).(type) {
	case nil:
		return true
	case string:
		return vv == ""
	case map[string]any:
		return len(vv) == 0
	case []any:
		return len(vv) == 0
	}
	return false
}

// SameValue compares two attribute values.
//
// Unset values are equal to each other. Numbers are compared by value regardless of their
// Go type, so that values read from JSON, YAML or the database compare equal.
func SameValue(a, b any) bool {
	if IsUnset(a) || IsUnset(b) {
		return IsUnset(a) && IsUnset(b)
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize converts a value into one of:
// nil, string, bool, float64, map[string]any or []any, recursively.
func normalize(v any) any {
	switch vv := v.(type) {
	case nil:
		return nil
	case string, bool, float64:
		return vv
	case json.Number:
		if f, err := vv.Float64(); err == nil {
			return f
		}
		return vv.String()
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, e := range vv {
			out[k] = normalize(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(vv))
		for k, e := range vv {
			out[k] = e
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// CopyValue returns a deep copy of v, so that values in a published graph are
// not shared with a working copy.
func CopyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, e := range vv {
			out[k] = CopyValue(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(vv))
		for k, e := range vv {
			out[k] = e
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = CopyValue(e)
		}
		return out
	}
	return v
}

// ValueString formats a value for messages and exports.
//
// Labels (maps) are formatted as JSON.
func ValueString(v any) string {
	switch vv := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	}
}

// CheckType checks v can be a value of the data type.
//
// Unset values conform to any type. Unknown data types accept anything.
func CheckType(dataType string, v any) error {
	if IsUnset(v) {
		return nil
	}
	n := normalize(v)
	switch dataType {
	case TypeString, TypeURI, TypeCode:
		if _, ok := n.(string); !ok {
			return fmt.Errorf("%s value is expected, but got %T", dataType, v)
		}
	case TypeBoolean:
		if _, ok := n.(bool); !ok {
			return fmt.Errorf("boolean value is expected, but got %T", v)
		}
	case TypeInteger:
		f, ok := n.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("integer value is expected, but got %v", v)
		}
	case TypeNumber:
		if _, ok := n.(float64); !ok {
			return fmt.Errorf("number value is expected, but got %T", v)
		}
	case TypeLabel:
		switch m := n.(type) {
		case string:
		case map[string]any:
			for lang, text := range m {
				if _, ok := text.(string); !ok {
					return fmt.Errorf("label for %s should be string, but got %T", lang, text)
				}
			}
		default:
			return fmt.Errorf("label value is expected, but got %T", v)
		}
	}
	return nil
}
