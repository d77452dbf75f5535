// Package base provides the socket based transport layers of the rpc system,
// independent of the specific network protocol (TCP, Unix sockets). The tcp and
// unix packages extend it with protocol-specific connectors.
//
// Frame format (all integers big endian):
//
//	8 bytes  request id
//	2 bytes  length of the collection name
//	4 bytes  length of the payload
//	N bytes  collection name
//	M bytes  payload (a serialized message)
//
// A response carries the request id and collection of its request.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dialing, listening and tuning of established connections).
//
//   - clientTransport: Keeps ConnectionsPerEndpoint connections to every endpoint and
//     picks one round-robin per attempt. Requests are multiplexed over a connection and
//     matched to their responses by request id. A failed connection fails all requests
//     waiting on it and is dialed again on its next use. Failed attempts are retried
//     with exponential backoff up to RetryCount times.
//
//   - serverTransport: Accepts connections and handles up to maxWorkersPerConn requests
//     of a connection concurrently. Read buffers are reused via a sync.Pool. Handlers
//     mounted with Mount (metrics) are served by a separate http server on
//     MetricsEndpoint. Cancelling the listen context closes the listener and all
//     connections and waits for running requests.
//
// Thread Safety:
//
//	Send may be called concurrently. Connect and Close must not race with Send.
package base
