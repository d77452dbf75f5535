package store

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Document is a single persisted entry of a collection.
// Key holds the top-level key, Value the whole value tree stored under it.
// ID and Revision are assigned by the backend and must not leave the database facade.
type Document struct {
	ID       string `json:"_id"`
	Key      string `json:"__KEY"`
	Value    any    `json:"__VALUE"`
	Revision uint64 `json:"__v"`
}

// IStore is the interface of a persisted collection of documents.
// Every document is addressed by its unique key. Values are trees of the JSON value model
// (see lib/dotpath); backends may encode them in any way as long as a value read back
// is deep-equal to the value written.
// All methods return a *Error on failure (nil on success).
type IStore interface {
	// FindAll returns all documents of the collection.
	FindAll(ctx context.Context) (docs []Document, err error)
	// FindOne returns the document with the given key. The boolean return value indicates whether a document was found.
	FindOne(ctx context.Context, key string) (doc Document, found bool, err error)
	// InsertOne inserts a new document. An error with code RetCDuplicateKey is returned if the key already exists.
	InsertOne(ctx context.Context, key string, value any) (err error)
	// UpdateOne replaces the value of an existing document. The boolean return value indicates whether a document matched the key.
	UpdateOne(ctx context.Context, key string, value any) (matched bool, err error)
	// DeleteOne deletes the document with the given key. The boolean return value indicates whether a document was deleted.
	DeleteOne(ctx context.Context, key string) (deleted bool, err error)
	// DeleteMany deletes all documents of the collection and returns how many were deleted.
	DeleteMany(ctx context.Context) (count int, err error)
}

// IBackend is a storage backend holding any number of named collections.
type IBackend interface {
	// Collection returns the collection with the given name, creating it if necessary.
	Collection(name string) (IStore, error)
	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases all resources held by the backend. The backend must not be used afterward.
	Close() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the backend.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCDuplicateKey                        // 4: A document with the key already exists.
	RetCClosed                              // 5: The backend has been closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCDuplicateKey:
		return "DuplicateKey"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrDuplicateKey = &Error{Code: RetCDuplicateKey}
	ErrClosed       = &Error{Code: RetCClosed}
)
