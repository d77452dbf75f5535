package dotpath

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ValentinKolb/dotKV/lib/dberr"
)

// Separator separates the segments of a path.
const Separator = "."

// Split validates a path and splits it into its segments.
// An empty path or a path with an empty first segment is rejected with a
// RequiredParameterMissing error for the parameter "key".
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, dberr.RequiredParameterMissing("key")
	}
	segs := strings.Split(path, Separator)
	if segs[0] == "" {
		return nil, dberr.RequiredParameterMissing("key")
	}
	return segs, nil
}

// IsObject reports whether v is a plain object (not nil, not an array).
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// IsArray reports whether v is an array.
func IsArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// IsNumber reports whether v is a number. NaN is not a number.
func IsNumber(v any) bool {
	f, ok := ToFloat(v)
	return ok && !math.IsNaN(f)
}

// ToFloat converts any Go numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// TypeOf returns the name of the type of v as used in error messages:
// null, object, array, number, string, boolean, or the Go type for anything else.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := ToFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// --------------------------------------------------------------------------
// Path Operations
// --------------------------------------------------------------------------

// Read descends from root along segs and returns the value found at the last segment.
// Any missing or non-object intermediate yields nil.
func Read(root map[string]any, segs []string) any {
	var cur any = root
	for _, seg := range segs {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = obj[seg]; !ok {
			return nil
		}
	}
	return cur
}

// Write assigns value at the last segment of segs, creating an empty object at every
// intermediate segment that does not hold a plain object. root is mutated in place.
func Write(root map[string]any, segs []string, value any) {
	obj := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := obj[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			obj[seg] = next
		}
		obj = next
	}
	obj[segs[len(segs)-1]] = value
}

// Remove deletes the property at the last segment of segs if it is reachable.
// It returns whether a non-nil value existed before the removal. Intermediates are
// never created.
func Remove(root map[string]any, segs []string) bool {
	obj := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := obj[seg].(map[string]any)
		if !ok {
			return false
		}
		obj = next
	}
	last := segs[len(segs)-1]
	v, ok := obj[last]
	if !ok {
		return false
	}
	delete(obj, last)
	return v != nil
}

// --------------------------------------------------------------------------
// Value Helpers
// --------------------------------------------------------------------------

// Clone returns a deep copy of a JSON model value tree.
// Objects and arrays are copied recursively, scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = Clone(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = Clone(e)
		}
		return c
	default:
		return v
	}
}

// Normalize converts an arbitrary Go value into the JSON value model by encoding and
// decoding it with encoding/json. Values that cannot be encoded (functions, channels,
// NaN, ...) are rejected with an InvalidType error for the parameter "value".
func Normalize(v any) (any, error) {
	if isNormalized(v) {
		return Clone(v), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, dberr.InvalidType("value", "JSON-serializable value", TypeOf(v))
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, dberr.InvalidType("value", "JSON-serializable value", TypeOf(v))
	}
	return out, nil
}

// isNormalized reports whether v already is a tree of the JSON value model.
func isNormalized(v any) bool {
	switch t := v.(type) {
	case nil, string, bool:
		return true
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case map[string]any:
		for _, e := range t {
			if !isNormalized(e) {
				return false
			}
		}
		return true
	case []any:
		for _, e := range t {
			if !isNormalized(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
