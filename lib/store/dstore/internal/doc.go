// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the format used to transmit operations
// between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
//   - Command System: Write operations (Insert, Update, Delete, DeleteMany) are
//     serialized and proposed to the RAFT cluster, executed on the state machine of
//     every replica, and produce results that are returned to the client.
//
//   - Query System: Read operations (FindAll, FindOne, Ping) are executed locally on
//     the state machine and therefore do not require serialization.
//
// Command Format:
//
//	- 1 byte: Command type
//	- 2 bytes: Collection length (uint16, big endian)
//	- 4 bytes: Key length (uint32, big endian)
//	- 1 byte: Document id length
//	- N bytes: Collection, key and id data
//	- M bytes: JSON encoded value (optional, only present for Insert and Update)
//
// The document id of an insert is generated by the proposer, so that every replica
// stores the same id.
package internal
