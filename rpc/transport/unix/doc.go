// Package unix implements the rpc transport over Unix domain sockets on top of the
// base package. The endpoint is the path of the socket file; a stale file left
// behind by a previous server is removed before listening.
package unix
