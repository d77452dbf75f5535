package database

import (
	"context"
	"math"

	"github.com/ValentinKolb/dotKV/lib/dberr"
	"github.com/ValentinKolb/dotKV/lib/dotpath"
)

// Add adds n to the number stored at key and returns the result.
// A missing value counts as 0.
func (db *Database) Add(ctx context.Context, key string, n any) (float64, error) {
	return db.arith(ctx, key, "numberToAdd", n, 1)
}

// Subtract subtracts n from the number stored at key and returns the result.
// A missing value counts as 0.
func (db *Database) Subtract(ctx context.Context, key string, n any) (float64, error) {
	return db.arith(ctx, key, "numberToSubtract", n, -1)
}

// IsTargetNumber reports whether a number is stored at key.
func (db *Database) IsTargetNumber(key string) (bool, error) {
	v, err := db.Get(key)
	return dotpath.IsNumber(v), err
}

func (db *Database) arith(ctx context.Context, key, param string, n any, sign float64) (float64, error) {
	target, err := db.mirror.Get(key)
	if err != nil {
		return 0, err
	}
	if target == nil {
		target = 0.0
	}
	current, ok := dotpath.ToFloat(target)
	if !ok || math.IsNaN(current) {
		return 0, dberr.InvalidTarget("number", dotpath.TypeOf(target))
	}
	if n == nil {
		return 0, dberr.RequiredParameterMissing(param)
	}
	operand, ok := dotpath.ToFloat(n)
	if !ok || math.IsNaN(operand) {
		return 0, dberr.InvalidType(param, "number", dotpath.TypeOf(n))
	}

	result := current + sign*operand
	if _, err := db.Set(ctx, key, result); err != nil {
		return 0, err
	}
	return result, nil
}
