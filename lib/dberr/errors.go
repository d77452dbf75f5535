package dberr

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by the database facade and the mirror cache.
// It wraps an error code (of type ErrCode) and a human-readable message.
//
// Errors can be matched with errors.Is against the sentinel values below,
// which compare by code only:
//
//	if errors.Is(err, dberr.ErrInvalidTarget) { ... }
type Error struct {
	Code ErrCode // The error code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("DatabaseError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code.
// A target with a message only matches errors with the exact same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint64

const (
	ErrCUnknown                  ErrCode = iota // 0: Unknown error.
	ErrCRequiredParameterMissing                // 1: A required parameter was not provided.
	ErrCInvalidType                             // 2: A parameter has the wrong type.
	ErrCInvalidTarget                           // 3: The value stored at a key has the wrong type for the operation.
	ErrCConnectionNotEstablished                // 4: The connection to the persisted store is down.
	ErrCOneOrMoreTypesInvalid                   // 5: At least one element of a parameter list has the wrong type.
	ErrCIndexOutOfRange                         // 6: An array index does not address an element.
)

func (c ErrCode) String() string {
	switch c {
	case ErrCRequiredParameterMissing:
		return "RequiredParameterMissing"
	case ErrCInvalidType:
		return "InvalidType"
	case ErrCInvalidTarget:
		return "InvalidTarget"
	case ErrCConnectionNotEstablished:
		return "ConnectionNotEstablished"
	case ErrCOneOrMoreTypesInvalid:
		return "OneOrMoreTypesInvalid"
	case ErrCIndexOutOfRange:
		return "IndexOutOfRange"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrRequiredParameterMissing = &Error{Code: ErrCRequiredParameterMissing}
	ErrInvalidType              = &Error{Code: ErrCInvalidType}
	ErrInvalidTarget            = &Error{Code: ErrCInvalidTarget}
	ErrConnectionNotEstablished = &Error{Code: ErrCConnectionNotEstablished}
	ErrOneOrMoreTypesInvalid    = &Error{Code: ErrCOneOrMoreTypesInvalid}
	ErrIndexOutOfRange          = &Error{Code: ErrCIndexOutOfRange}
)

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// RequiredParameterMissing is returned when the parameter called name is empty or missing.
func RequiredParameterMissing(name string) *Error {
	return NewError(ErrCRequiredParameterMissing,
		fmt.Sprintf("'%s' parameter is required but is missing.", name))
}

// InvalidType is returned when the parameter called name is not of the expected type.
func InvalidType(name, expected, received string) *Error {
	return NewError(ErrCInvalidType,
		fmt.Sprintf("'%s' must be a type of %s. Received type: %s.", name, expected, received))
}

// InvalidTarget is returned when the value stored at a key is not of the expected type.
func InvalidTarget(expected, received string) *Error {
	return NewError(ErrCInvalidTarget,
		fmt.Sprintf("The target must be a(n) %s. Received type: %s.", expected, received))
}

// ConnectionNotEstablished is returned when a store call is attempted on a disconnected client.
func ConnectionNotEstablished() *Error {
	return NewError(ErrCConnectionNotEstablished, "Connection to the persisted store is not established.")
}

// OneOrMoreTypesInvalid aggregates type violations of a list parameter.
// received holds the type name of every element in the list, in order.
func OneOrMoreTypesInvalid(name, expected string, received []string) *Error {
	return NewError(ErrCOneOrMoreTypesInvalid,
		fmt.Sprintf("One or more elements of '%s' must be a type of %s. Received types: [%s].",
			name, expected, strings.Join(received, ", ")))
}

// IndexOutOfRange is returned when an index parameter does not address an element of an array of the given length.
func IndexOutOfRange(name string, index, length int) *Error {
	return NewError(ErrCIndexOutOfRange,
		fmt.Sprintf("'%s' index %d is out of range for array of length %d.", name, index, length))
}
