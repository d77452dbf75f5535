package transport

import (
	"context"
	"net/http"

	"github.com/ValentinKolb/dotKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the name of the addressed collection and a request as parameters and returns a response
type ServerHandleFunc func(collection string, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for extracting the collection name from the request
	RegisterHandler(handler ServerHandleFunc)
	// Mount registers an additional plain HTTP handler (e.g. metrics) under the given path
	Mount(path string, handler http.Handler)
	// Listen starts the transport layer and blocks until ctx is done or the listener fails
	Listen(ctx context.Context, config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for the given collection to the server and returns the response
	Send(ctx context.Context, collection string, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
