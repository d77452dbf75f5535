// Package sqlstore implements store.IBackend on top of a SQLite database file.
//
// All collections share the table "documents", which is created by the embedded
// migrations on Open. Each row holds the collection name, the document key, the JSON
// encoded value and a revision counter. The pair (collection, key) is unique; inserting
// a key twice fails with store.RetCDuplicateKey.
//
// The database is opened in WAL mode.
package sqlstore
