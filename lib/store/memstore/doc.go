// Package memstore implements store.IBackend in process memory.
//
// Every collection is a concurrent map from key to document. Documents get a random
// uuid as id and a revision counter that is incremented by every update. Values are
// normalized to the JSON value model on write and deep-copied on read, so callers can
// never observe or cause mutation of stored documents.
//
// The whole backend can be written to and restored from a JSON snapshot (Save / Load).
// The distributed store (dstore) uses this to snapshot its state machine.
package memstore
