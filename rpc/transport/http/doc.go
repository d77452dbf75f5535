// Package http implements the HTTP transport layer of the rpc system. It provides
// concrete implementations of the transport interfaces defined in the parent package.
//
// Key Components:
//
//   - httpServerTransport: Implements IRPCServerTransport. Requests are routed with chi:
//     every request is a POST to /{collection} carrying a serialized message in its body.
//     Additional read-only handlers (the metrics endpoint) are mounted with Mount.
//     If CORS origins are configured, the router is wrapped with rs/cors. In debug mode
//     every request is logged with its status and duration.
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are spread over the
//     configured endpoints round-robin. Failed attempts (network errors and 5xx responses)
//     are retried with exponential backoff up to RetryCount times; 4xx responses and
//     cancelled contexts end the retries immediately.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	an atomic counter for the round-robin selection of server endpoints.
package http
