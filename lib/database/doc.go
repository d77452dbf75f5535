// Package database provides the dot-path key/value facade over a persisted collection.
//
// A Database owns a mirror of its collection (lib/mirror) and serves every read from
// it. Writes update the mirror first and then persist the whole subtree of the affected
// top-level key as one {__KEY, __VALUE} document:
//
//	db, err := database.New(ctx, conn, database.Options{Name: "users"})
//	_, err = db.Set(ctx, "alice.balance", 10)
//	v, _ := db.Get("alice")   // map[string]any{"balance": 10.0}
//
// Values follow the JSON value model, numbers are always returned as float64.
// Use Decode to read an entry into a Go type.
//
// Consistency:
//
//   - New only returns after the mirror has been loaded (Reload repeats the load).
//   - Within one goroutine, every call observes the writes of previous calls.
//   - Concurrent writes below the same top-level key may overwrite each other:
//     the last writer wins per top-level key, not per leaf.
//   - When persisting fails, the error is returned but the mirror keeps the new value.
//     There is no rollback; Reload restores the persisted state.
//
// A missing key and a key holding null both read as nil.
package database
