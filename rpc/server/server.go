package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/lib/store/dstore"
	"github.com/ValentinKolb/dotKV/lib/store/memstore"
	"github.com/ValentinKolb/dotKV/lib/store/pogrebstore"
	"github.com/ValentinKolb/dotKV/lib/store/sqlstore"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/serializer"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:      config,
		transport:   transport,
		serializer:  serializer,
		adapter:     NewIStoreServerAdapter(),
		collections: xsync.NewMapOf[string, store.IStore](),
	}
}

// RPCServer hosts the collections of one storage backend over an rpc transport.
type RPCServer struct {
	config      common.ServerConfig
	transport   transport.IRPCServerTransport
	serializer  serializer.IRPCSerializer
	adapter     IRPCServerAdapter
	backend     store.IBackend
	collections *xsync.MapOf[string, store.IStore]
}

// Serve starts the RPC server
// This function will also open the backend and start the transport layer.
// It blocks until ctx is done or the transport fails and closes the backend before returning.
func (s *RPCServer) Serve(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}
	defer func() {
		if err := s.backend.Close(); err != nil {
			Logger.Errorf("failed to close backend: %v", err)
		}
	}()
	err := s.transport.Listen(ctx, s.config)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *RPCServer) init() error {
	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		Logger.Warningf("%v", err)
	}

	backend, err := OpenBackend(s.config)
	if err != nil {
		return err
	}
	s.backend = backend

	Logger.Infof("dotKV setup completed successfully")

	// Configure the transport layer
	s.transport.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	}))
	s.transport.RegisterHandler(s.handle)

	return nil
}

// handle decodes a request, dispatches it to the adapter and encodes the response
func (s *RPCServer) handle(collection string, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	// Decode the request
	if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else if coll, err := s.collection(collection); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to open collection %s: %s", collection, err))
	} else {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dotkv_rpc_requests_total{collection=%q,type=%q}`, collection, msg.MsgType)).Inc()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
		respMsg = s.adapter.Handle(ctx, &msg, s.backend, coll)
		cancel()
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// collection returns the (cached) collection of the backend
func (s *RPCServer) collection(name string) (store.IStore, error) {
	if coll, ok := s.collections.Load(name); ok {
		return coll, nil
	}
	coll, err := s.backend.Collection(name)
	if err != nil {
		return nil, err
	}
	actual, _ := s.collections.LoadOrStore(name, coll)
	return actual, nil
}

func (s *RPCServer) timeout() time.Duration {
	if s.config.TimeoutSecond <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.config.TimeoutSecond) * time.Second
}

// --------------------------------------------------------------------------
// Backend selection
// --------------------------------------------------------------------------

// OpenBackend opens the storage backend selected by config.Backend.
// The raft backend starts a dragonboat NodeHost and the configured shard on it.
func OpenBackend(config common.ServerConfig) (store.IBackend, error) {
	switch config.Backend {
	case common.BackendMemory, "":
		Logger.Infof("using in-memory backend")
		return memstore.New(), nil

	case common.BackendSQLite:
		if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create data dir %s", config.DataDir)
		}
		backend, err := sqlstore.Open(filepath.Join(config.DataDir, "dotkv.db"))
		if err != nil {
			return nil, err
		}
		return backend, nil

	case common.BackendPogreb:
		backend, err := pogrebstore.Open(filepath.Join(config.DataDir, "pogreb"), pogrebOptions(config)...)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case common.BackendRaft:
		if _, ok := config.ClusterMembers[config.ReplicaID]; !ok {
			return nil, fmt.Errorf("replica %d is not a member of the cluster", config.ReplicaID)
		}
		nodeHost, err := dragonboat.NewNodeHost(config.ToNodeHostConfig())
		if err != nil {
			return nil, errors.Wrap(err, "failed to create node host")
		}
		if err := nodeHost.StartConcurrentReplica(config.ClusterMembers, false, dstore.CreateStateMachineFactory(), config.ToDragonboatConfig()); err != nil {
			nodeHost.Close()
			return nil, errors.Wrapf(err, "failed to start shard %d", config.ShardID)
		}
		Logger.Infof("started raft shard %d on replica %d", config.ShardID, config.ReplicaID)
		timeout := time.Duration(max(config.TimeoutSecond, 1)) * time.Second
		return dstore.NewDistributedBackend(nodeHost, config.ShardID, timeout), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", config.Backend)
	}
}

// pogrebOptions translates the pogreb related server settings
func pogrebOptions(config common.ServerConfig) []pogrebstore.Option {
	var opts []pogrebstore.Option
	if config.SyncIntervalSecond > 0 {
		opts = append(opts, pogrebstore.WithSyncInterval(time.Duration(config.SyncIntervalSecond)*time.Second))
	}
	return opts
}
