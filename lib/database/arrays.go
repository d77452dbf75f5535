package database

import (
	"context"
	"math"
	"math/rand"

	"github.com/ValentinKolb/dotKV/lib/dberr"
	"github.com/ValentinKolb/dotKV/lib/dotpath"
)

// Push appends values to the array stored at key and returns the new array.
// A missing value counts as an empty array.
func (db *Database) Push(ctx context.Context, key string, values ...any) ([]any, error) {
	arr, err := db.targetArray(key)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, dberr.RequiredParameterMissing("values")
	}
	for _, value := range values {
		v, err := dotpath.Normalize(value)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return db.storeArray(ctx, key, arr)
}

// Pull replaces the element at index of the array stored at key with value and returns the new array.
// A negative index counts from the end (-1 is the last element). The index equal to the
// length appends value; any other index outside the array is IndexOutOfRange.
func (db *Database) Pull(ctx context.Context, key string, index any, value any) ([]any, error) {
	arr, err := db.targetArray(key)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, dberr.RequiredParameterMissing("index")
	}
	i, ok := toIndex(index)
	if !ok {
		return nil, dberr.InvalidType("index", "integer", dotpath.TypeOf(index))
	}
	v, err := dotpath.Normalize(value)
	if err != nil {
		return nil, err
	}

	pos := i
	if pos < 0 {
		pos += len(arr)
	}
	switch {
	case pos < 0 || pos > len(arr):
		return nil, dberr.IndexOutOfRange("index", i, len(arr))
	case pos == len(arr):
		arr = append(arr, v)
	default:
		arr[pos] = v
	}
	return db.storeArray(ctx, key, arr)
}

// Pop removes the elements at the given indexes from the array stored at key and
// returns the new array. Indexes are applied one after another, each against the
// array left by the previous removal. A negative index counts from the end, an
// index past the end removes nothing.
func (db *Database) Pop(ctx context.Context, key string, indexes ...any) ([]any, error) {
	arr, err := db.targetArray(key)
	if err != nil {
		return nil, err
	}
	if len(indexes) == 0 {
		return nil, dberr.RequiredParameterMissing("indexes")
	}

	parsed := make([]int, len(indexes))
	types := make([]string, len(indexes))
	invalid := false
	for n, index := range indexes {
		i, ok := toIndex(index)
		parsed[n] = i
		types[n] = dotpath.TypeOf(index)
		invalid = invalid || !ok
	}
	if invalid {
		if len(indexes) == 1 {
			return nil, dberr.InvalidType("index", "integer", types[0])
		}
		return nil, dberr.OneOrMoreTypesInvalid("indexes", "integer", types)
	}

	for _, i := range parsed {
		if i < 0 {
			i = max(len(arr)+i, 0)
		}
		if i < len(arr) {
			arr = append(arr[:i], arr[i+1:]...)
		}
	}
	return db.storeArray(ctx, key, arr)
}

// Random returns a random element of the array stored at key, nil for an empty array.
func (db *Database) Random(key string) (any, error) {
	target, err := db.Get(key)
	if err != nil {
		return nil, err
	}
	arr, ok := target.([]any)
	if !ok {
		return nil, dberr.InvalidTarget("array", dotpath.TypeOf(target))
	}
	if len(arr) == 0 {
		return nil, nil
	}
	return arr[rand.Intn(len(arr))], nil
}

// IsTargetArray reports whether an array is stored at key.
func (db *Database) IsTargetArray(key string) (bool, error) {
	v, err := db.Get(key)
	return dotpath.IsArray(v), err
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// targetArray returns a copy of the array stored at key, an empty array if nothing is stored.
func (db *Database) targetArray(key string) ([]any, error) {
	target, err := db.mirror.Get(key)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return []any{}, nil
	}
	arr, ok := target.([]any)
	if !ok {
		return nil, dberr.InvalidTarget("array", dotpath.TypeOf(target))
	}
	return arr, nil
}

func (db *Database) storeArray(ctx context.Context, key string, arr []any) ([]any, error) {
	if _, err := db.Set(ctx, key, arr); err != nil {
		return nil, err
	}
	return arr, nil
}

// toIndex converts a whole number of any numeric type to an int.
func toIndex(v any) (int, bool) {
	f, ok := dotpath.ToFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
