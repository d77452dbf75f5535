// Package transport defines the interfaces between the rpc server/client and the
// network. A server transport receives serialized requests addressed to a collection
// and hands them to a registered handler; a client transport sends serialized
// requests to one of the configured endpoints.
//
// Implementations live in the sub packages:
//   - http: one POST per request to /{collection}, routed with chi
//   - tcp, unix: multiplexed frames over persistent sockets (built on base)
package transport
