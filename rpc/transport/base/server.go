package base

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// shutdownTimeout bounds the shutdown of the metrics server
const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	mounts            map[string]http.Handler
	conns             *xsync.MapOf[net.Conn, struct{}]
	bufferPool        *sync.Pool
	maxWorkersPerConn int
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	return &serverTransport{
		connector:         connector,
		mounts:            make(map[string]http.Handler),
		conns:             xsync.NewMapOf[net.Conn, struct{}](),
		maxWorkersPerConn: max(maxWorkersPerConn, 1),
		bufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Mount(path string, handler http.Handler) {
	t.mounts[path] = handler
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s listener", t.connector.GetName())
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, t.maxWorkersPerConn)

	metricsServer := t.startMountServer(config)

	// Closing the listener ends the accept loop
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			Logger.Infof("Shutting down %s server on %s", t.connector.GetName(), config.Endpoint)
		case <-stop:
		}
		_ = listener.Close()
	}()

	var wg sync.WaitGroup
	defer func() {
		// Unblock the readers of all open connections and wait for their workers
		t.conns.Range(func(conn net.Conn, _ struct{}) bool {
			_ = conn.Close()
			return true
		})
		wg.Wait()

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}
	}()

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Errorf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.conns.Store(conn, struct{}{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer t.conns.Delete(conn)
			t.handleConnection(conn, config)
		}()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// startMountServer serves the mounted handlers on config.MetricsEndpoint. It returns
// nil if there is nothing to serve.
func (t *serverTransport) startMountServer(config common.ServerConfig) *http.Server {
	if len(t.mounts) == 0 {
		return nil
	}
	if config.MetricsEndpoint == "" {
		Logger.Warningf("No metrics endpoint configured, %d mounted handler(s) are not served by the %s transport",
			len(t.mounts), t.connector.GetName())
		return nil
	}

	router := chi.NewRouter()
	for path, handler := range t.mounts {
		router.Method(http.MethodGet, path, handler)
	}
	server := &http.Server{Addr: config.MetricsEndpoint, Handler: router}

	go func() {
		Logger.Infof("Serving metrics on %s", config.MetricsEndpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	return server
}

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn, config common.ServerConfig) {
	defer conn.Close()

	// Timeout in seconds
	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// Create a mutex to protect writes to the connection
	var connMutex sync.Mutex

	// Handler function that processes requests in worker goroutines
	handleResponse := func(requestID uint64, collection string, data []byte) {
		start := time.Now()
		resp := t.handler(collection, data)
		Logger.Debugf("Processed request %d for collection %s took %s", requestID, collection, time.Since(start))

		// Protect writes to the connection with a mutex
		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// Write the response with the same requestID
		if err := writeFrame(conn, requestID, collection, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Handle requests in a loop; a connection may stay idle for any time
	for {
		buf := t.bufferPool.Get().([]byte)
		requestID, collection, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				Logger.Debugf("Connection from %s closed", conn.RemoteAddr())
			} else {
				Logger.Errorf("Error reading request: %v", err)
			}
			break
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached)
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				t.bufferPool.Put(buf)
				<-workerSemaphore
				wg.Done()
			}()
			handleResponse(requestID, collection, data)
		}()
	}

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
