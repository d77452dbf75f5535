package internal

import "github.com/ValentinKolb/dotKV/lib/store"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTFindAll QueryType = iota // Retrieve all documents of a collection.
	QueryTFindOne                  // Retrieve a document by key.
	QueryTPing                     // Check that the state machine answers.
)

func (q QueryType) String() string {
	switch q {
	case QueryTFindAll:
		return "FindAll"
	case QueryTFindOne:
		return "FindOne"
	case QueryTPing:
		return "Ping"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type       QueryType // The type of Query to perform.
	Collection string    // The collection to query (empty for QueryTPing).
	Key        string    // The key for the Query (empty for some queries).
}

// QueryResult is the result of every query.
// Found is only meaningful for QueryTFindOne.
type QueryResult struct {
	Found     bool
	Documents []store.Document
}
