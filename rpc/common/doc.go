// Package common provides the data structures shared by the rpc client and server.
//
// Key Components:
//
//   - Message: Core data structure for all rpc communication, with a flexible
//     structure that adapts to the different store operations. Includes factory
//     functions for every request and response. Errors carry the store.RetCode of
//     the failed operation so they can be restored on the client.
//
//   - Document: Wire form of a store.Document with a JSON encoded value.
//
//   - MessageType: Enumeration of all supported operations (findAll, findOne,
//     insertOne, updateOne, deleteOne, deleteMany, ping) plus the control
//     messages success and error.
//
//   - ServerConfig: Configuration of the server: storage backend, RAFT parameters
//     for the raft backend, endpoint, CORS origins and log level. Provides utilities
//     for converting to Dragonboat-specific configurations.
//
//   - ClientConfig: Configuration for the client: endpoints, timeout and retries.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
