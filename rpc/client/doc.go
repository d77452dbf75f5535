// Package client implements the rpc client backend. NewRPCBackend returns a
// store.IBackend whose collections are hosted by a remote rpc server (see rpc/server),
// so a database facade can use a remote server exactly like a local backend.
//
// Every IStore call is sent as one request message addressed to the collection.
// Values travel JSON encoded; a failed operation comes back as a *store.Error with
// the server-side code, so errors.Is(err, store.ErrDuplicateKey) works across the wire.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	backend, err := client.NewRPCBackend(config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	if err != nil {
//	  return err
//	}
//	users, _ := backend.Collection("users")
//	err = users.InsertOne(ctx, "alice", map[string]any{"age": 30})
//
// Client and server must use the same serializer.
//
// Thread Safety:
//
//	The backend and its collections are safe for concurrent use as long as the
//	transport is (the http transport is).
package client
