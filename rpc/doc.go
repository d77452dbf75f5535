// Package rpc lets a database facade use collections hosted by another process.
// It is the communication layer between the rpc client backend and the server.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions; transport/http implements
//     them on top of chi, rs/cors and exponential backoff retries.
//
//   - serializer: Message serialization (JSON, GOB) for converting between
//     Message objects and byte arrays.
//
//   - client: The rpc backend, a store.IBackend forwarding every call to a server.
//
//   - server: The rpc server hosting the collections of a local or raft backend.
package rpc
