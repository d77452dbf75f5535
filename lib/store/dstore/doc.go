// Package dstore implements a distributed, fault-tolerant document backend using
// the Dragonboat RAFT consensus library. It provides a strongly consistent implementation
// of the store.IBackend interface that operates across multiple nodes while
// maintaining linearizable consistency.
//
// Architecture:
//
//   - Backend Client: Implements store.IBackend and store.IStore. All collections of a
//     backend share one raft shard; every command and query carries the collection name.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine that applies commands and
//     answers queries on each node. It keeps its data in a memstore.Backend and uses
//     its JSON snapshots for raft snapshotting and recovery.
//
//   - Communication Protocol: Defined in the internal package, this consists of Command
//     and Query structures with serialization logic for the raft log.
//
// Write Operations:
//
//	InsertOne, UpdateOne, DeleteOne and DeleteMany follow this flow:
//
//	1. The operation is serialized into a Command (values as JSON, inserts with a fresh document id)
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. Once committed, the command is applied on the state machine of each node
//	4. The result code and the number of affected documents are returned to the client
//
// Read Operations:
//
//	FindAll, FindOne and Ping use SyncRead, which guarantees that the node processing
//	the read has applied all committed log entries before answering.
//
// Error Handling and Retries:
//
//	When Dragonboat returns ErrSystemBusy, the operation is retried after a short delay,
//	up to five times. Every attempt is bounded by the configured timeout and by the
//	caller's context.
package dstore
