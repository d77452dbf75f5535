// Package serializer provides message serialization for the rpc layer. It defines
// a common interface and the implementations used to encode messages exchanged
// between rpc clients and the server.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: Implementation using JSON encoding. Messages are human-readable,
//     which is useful for debugging and for clients written in other languages.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Only usable
//     between Go programs.
//
//   - binarySerializerImpl: A compact length prefixed format with a flag byte marking
//     the fields present. Smallest messages, pairs well with the tcp and unix transports.
//
// Document values travel as JSON inside the message for every serializer.
//
// Client and server must use the same serializer.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewJSONSerializer()
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
