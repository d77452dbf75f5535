// Package server implements the rpc server. It hosts the collections of one
// storage backend and answers the requests sent by rpc/client backends.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes an incoming request against a collection.
//
//   - NewIStoreServerAdapter: Factory function creating the adapter translating rpc
//     requests to store.IStore method calls. Document values travel JSON encoded.
//     Store errors keep their code, so a client sees the same *store.Error (e.g. a
//     duplicate key on insert) as a local caller would.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
//   - OpenBackend: Opens the backend selected in the configuration:
//     memory (memstore), sqlite (sqlstore), pogreb (pogrebstore) or raft (dstore on a
//     dragonboat NodeHost). The cli uses it for local backends as well.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Backend:       common.BackendSQLite,
//	  DataDir:       "./data",
//	  Endpoint:      "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Collections are opened lazily on their first request and cached. Every request is
// counted in the dotkv_rpc_requests_total metric, exposed together with all other
// metrics at GET /metrics.
//
// Thread Safety:
//
//	The server handles concurrent requests; each request is processed independently.
//	Serve must be called only once.
package server
