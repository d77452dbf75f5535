// Package tcp implements the rpc transport over plain TCP connections on top of
// the base package. Connections are upgraded with TCP_NODELAY and keep-alive probes.
// Endpoints are host:port addresses (e.g. localhost:8080).
package tcp
