package dberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InvalidTarget("number", "array"))

	assert.True(t, errors.Is(err, ErrInvalidTarget))
	assert.False(t, errors.Is(err, ErrInvalidType))
	assert.False(t, errors.Is(err, InvalidTarget("number", "string")))
	assert.True(t, errors.Is(err, InvalidTarget("number", "array")))

	var dbErr *Error
	assert.True(t, errors.As(err, &dbErr))
	assert.Equal(t, ErrCInvalidTarget, dbErr.Code)
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"missing", RequiredParameterMissing("key"), "'key' parameter is required but is missing."},
		{"type", InvalidType("numberToAdd", "number", "string"), "'numberToAdd' must be a type of number. Received type: string."},
		{"target", InvalidTarget("array", "object"), "The target must be a(n) array. Received type: object."},
		{"aggregate", OneOrMoreTypesInvalid("indexes", "number", []string{"number", "string"}),
			"One or more elements of 'indexes' must be a type of number. Received types: [number, string]."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Msg)
			assert.Contains(t, tt.err.Error(), tt.err.Code.String())
		})
	}
}
