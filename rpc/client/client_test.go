package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/lib/store/storetesting"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/serializer"
	"github.com/ValentinKolb/dotKV/rpc/server"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	httpTransport "github.com/ValentinKolb/dotKV/rpc/transport/http"
	"github.com/ValentinKolb/dotKV/rpc/transport/tcp"
	"github.com/ValentinKolb/dotKV/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// In-process transport connecting a client directly to a server handler
// --------------------------------------------------------------------------

type loopbackTransport struct {
	mu      sync.Mutex
	handler transport.ServerHandleFunc
	ready   chan struct{}
	stop    context.CancelFunc
}

func (l *loopbackTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = handler
	close(l.ready)
}

func (l *loopbackTransport) Mount(string, http.Handler) {}

func (l *loopbackTransport) Listen(ctx context.Context, _ common.ServerConfig) error {
	<-ctx.Done()
	return nil
}

func (l *loopbackTransport) Connect(common.ClientConfig) error {
	<-l.ready
	return nil
}

func (l *loopbackTransport) Send(_ context.Context, collection string, req []byte) ([]byte, error) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()
	return handler(collection, req), nil
}

func (l *loopbackTransport) Close() error {
	l.stop()
	return nil
}

// newLoopbackBackend starts an in-memory rpc server and returns a client backend connected to it.
func newLoopbackBackend(t testing.TB, s serializer.IRPCSerializer) store.IBackend {
	ctx, cancel := context.WithCancel(context.Background())
	lt := &loopbackTransport{ready: make(chan struct{}), stop: cancel}

	srv := server.NewRPCServer(common.ServerConfig{
		Backend:       common.BackendMemory,
		TimeoutSecond: 5,
		LogLevel:      "error",
	}, lt, s)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			t.Errorf("serve failed: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	backend, err := NewRPCBackend(common.ClientConfig{Endpoints: []string{"loopback"}}, lt, s)
	require.NoError(t, err)
	return backend
}

// newServedBackend starts an rpc server on endpoint and returns a client backend
// connected to it over the given transports.
func newServedBackend(
	t testing.TB,
	endpoint string,
	st transport.IRPCServerTransport,
	ct transport.IRPCClientTransport,
	s serializer.IRPCSerializer,
) store.IBackend {
	ctx, cancel := context.WithCancel(context.Background())
	srv := server.NewRPCServer(common.ServerConfig{
		Backend:       common.BackendMemory,
		Endpoint:      endpoint,
		TimeoutSecond: 5,
		LogLevel:      "error",
	}, st, s)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			t.Errorf("serve failed: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// the server may not be listening yet
	var backend store.IBackend
	require.Eventually(t, func() bool {
		var err error
		backend, err = NewRPCBackend(common.ClientConfig{
			Endpoints:     []string{endpoint},
			TimeoutSecond: 5,
			RetryCount:    2,
		}, ct, s)
		return err == nil && backend.Ping(ctx) == nil
	}, 5*time.Second, 10*time.Millisecond)
	return backend
}

// freeAddress returns a local tcp address nothing listens on
func freeAddress(t testing.TB) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func newUnixBackend(t testing.TB, s serializer.IRPCSerializer) store.IBackend {
	socket := filepath.Join(t.TempDir(), "dotkv.sock")
	return newServedBackend(t, socket, unix.NewUnixDefaultServerTransport(), unix.NewUnixClientTransport(), s)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRPCBackendJSON(t *testing.T) {
	storetesting.RunStoreTests(t, "RPC-JSON", func(t testing.TB) store.IBackend {
		return newLoopbackBackend(t, serializer.NewJSONSerializer())
	})
}

func TestRPCBackendGOB(t *testing.T) {
	storetesting.RunStoreTests(t, "RPC-GOB", func(t testing.TB) store.IBackend {
		return newLoopbackBackend(t, serializer.NewGOBSerializer())
	})
}

func TestRPCBackendBinary(t *testing.T) {
	storetesting.RunStoreTests(t, "RPC-BINARY", func(t testing.TB) store.IBackend {
		return newLoopbackBackend(t, serializer.NewBinarySerializer())
	})
}

func TestRPCBackendUnix(t *testing.T) {
	storetesting.RunStoreTests(t, "RPC-UNIX-BINARY", func(t testing.TB) store.IBackend {
		return newUnixBackend(t, serializer.NewBinarySerializer())
	})
}

func TestRPCBackendTCP(t *testing.T) {
	storetesting.RunStoreTests(t, "RPC-TCP-GOB", func(t testing.TB) store.IBackend {
		return newServedBackend(t, freeAddress(t), tcp.NewTCPDefaultServerTransport(), tcp.NewTCPClientTransport(), serializer.NewGOBSerializer())
	})
}

func TestCollectionNamesSurviveTransport(t *testing.T) {
	ctx := context.Background()
	backends := map[string]func(t testing.TB) store.IBackend{
		"http": func(t testing.TB) store.IBackend {
			addr := freeAddress(t)
			return newServedBackend(t, addr, httpTransport.NewHttpServerTransport(), httpTransport.NewHttpClientTransport(), serializer.NewJSONSerializer())
		},
		"unix": func(t testing.TB) store.IBackend {
			return newUnixBackend(t, serializer.NewBinarySerializer())
		},
	}

	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()

			for i, collection := range []string{"users/with slash", "100%", "a?b#c"} {
				coll, err := backend.Collection(collection)
				require.NoError(t, err)
				require.NoError(t, coll.InsertOne(ctx, "k", float64(i)), collection)

				docs, err := coll.FindAll(ctx)
				require.NoError(t, err)
				require.Len(t, docs, 1, collection)
				assert.Equal(t, float64(i), docs[0].Value)
			}
		})
	}
}

func BenchmarkRPCBackend(b *testing.B) {
	storetesting.RunStoreBenchmarks(b, "RPC-JSON", func(t testing.TB) store.IBackend {
		return newLoopbackBackend(t, serializer.NewJSONSerializer())
	})
}

func BenchmarkRPCBackendUnix(b *testing.B) {
	storetesting.RunStoreBenchmarks(b, "RPC-UNIX-BINARY", func(t testing.TB) store.IBackend {
		return newUnixBackend(t, serializer.NewBinarySerializer())
	})
}

func TestErrorCodesSurviveTransport(t *testing.T) {
	ctx := context.Background()
	backend := newLoopbackBackend(t, serializer.NewJSONSerializer())
	defer backend.Close()

	coll, err := backend.Collection("c")
	require.NoError(t, err)
	require.NoError(t, coll.InsertOne(ctx, "k", 1))

	err = coll.InsertOne(ctx, "k", 2)
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCDuplicateKey, storeErr.Code)

	_, err = backend.Collection("")
	assert.Error(t, err)
}

func TestUnsupportedValue(t *testing.T) {
	backend := newLoopbackBackend(t, serializer.NewJSONSerializer())
	defer backend.Close()

	coll, err := backend.Collection("c")
	require.NoError(t, err)
	err = coll.InsertOne(context.Background(), "k", make(chan int))
	assert.Error(t, err)
}
