package database

import (
	"sort"

	"github.com/ValentinKolb/dotKV/lib/dotpath"
)

// Keys returns the keys of the object stored at key, or of the whole database if key is empty.
// Keys holding nil are left out. The keys are sorted; a non-object target yields no keys.
func (db *Database) Keys(key string) ([]string, error) {
	keys, _, err := db.entries(key)
	return keys, err
}

// Values returns the values matching Keys(key), in the same order.
func (db *Database) Values(key string) ([]any, error) {
	_, values, err := db.entries(key)
	return values, err
}

// entries returns the non-nil members of the object at key, ordered by member name.
func (db *Database) entries(key string) ([]string, []any, error) {
	if key == "" {
		keys, values := db.topLevelEntries()
		return keys, values, nil
	}

	target, err := db.mirror.Get(key)
	if err != nil {
		return nil, nil, err
	}
	obj, _ := target.(map[string]any)

	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = obj[k]
	}
	return keys, values, nil
}

// topLevelEntries copies the non-nil top-level entries of the mirror in key order.
// Keys deleted while walking are skipped.
func (db *Database) topLevelEntries() ([]string, []any) {
	all := db.mirror.Keys()
	keys := all[:0]
	values := make([]any, 0, len(all))
	for _, k := range all {
		v, ok := db.mirror.Load(k)
		if !ok || v == nil {
			continue
		}
		keys = append(keys, k)
		values = append(values, dotpath.Clone(v))
	}
	return keys, values
}

// --------------------------------------------------------------------------
// Predicate helpers over top-level entries (ordered by key)
// --------------------------------------------------------------------------

// Predicate is called with a top-level key and a copy of its value.
type Predicate func(key string, value any) bool

// Find returns the first top-level value matching pred.
func (db *Database) Find(pred Predicate) (any, bool) {
	keys, values, _ := db.entries("")
	for i, k := range keys {
		if pred(k, values[i]) {
			return values[i], true
		}
	}
	return nil, false
}

// FindIndex returns the position of the first top-level value matching pred, -1 if none matches.
func (db *Database) FindIndex(pred Predicate) int {
	keys, values, _ := db.entries("")
	for i, k := range keys {
		if pred(k, values[i]) {
			return i
		}
	}
	return -1
}

// Filter returns the top-level values matching pred in key order.
func (db *Database) Filter(pred Predicate) []any {
	keys, values, _ := db.entries("")
	out := make([]any, 0)
	for i, k := range keys {
		if pred(k, values[i]) {
			out = append(out, values[i])
		}
	}
	return out
}

// Map applies fn to every top-level entry and returns the results in key order.
func (db *Database) Map(fn func(key string, value any) any) []any {
	keys, values, _ := db.entries("")
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = fn(k, values[i])
	}
	return out
}

// Some reports whether any top-level entry matches pred.
func (db *Database) Some(pred Predicate) bool {
	return db.FindIndex(pred) >= 0
}

// Every reports whether all top-level entries match pred. It is true for an empty database.
func (db *Database) Every(pred Predicate) bool {
	return db.FindIndex(func(k string, v any) bool { return !pred(k, v) }) < 0
}

// Includes reports whether a value deep-equal to value is stored at the top level.
func (db *Database) Includes(value any) bool {
	v, err := dotpath.Normalize(value)
	if err != nil {
		return false
	}
	return db.Some(func(_ string, candidate any) bool {
		return equal(candidate, v)
	})
}

// equal compares two values of the JSON value model.
func equal(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
