// Package store defines the persisted side of a database: named collections of
// {__KEY, __VALUE} documents, one document per top-level key.
//
// Key Components:
//
//   - IStore Interface: A single collection. It offers exactly the operations the
//     database facade needs (find all, find one, insert, update, delete one, delete all)
//     and nothing more. Values are trees of the JSON value model.
//
//   - IBackend Interface: A storage backend that hands out collections by name and
//     owns the underlying resources (files, raft node host, network connection).
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     and descriptive messages, shared by every backend and by the rpc layer.
//
// Implementations:
//
//	- Memory Store (memstore): Collections held in concurrent maps, optionally
//	  snapshotted to a writer. Used for tests, single-process setups and as the data
//	  layer of the raft state machine.
//
//	- SQL Store (sqlstore): A SQLite file, one table for all collections, migrated
//	  with embedded migrations.
//
//	- Pogreb Store (pogrebstore): One embedded pogreb key-value database per
//	  collection below a data directory.
//
//	- Distributed Store (dstore): Collections replicated with the Dragonboat RAFT
//	  library across several nodes.
//
//	- RPC Backend (rpc/client): Collections hosted by a remote dotkv server.
//
// The shared conformance suite in lib/store/storetesting is run against every
// implementation.
package store
