package base

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/cenkalti/backoff/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// errTransportClosed is returned by Send after Close
var errTransportClosed = errors.New("transport is closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// wire is one established net connection and the requests waiting for an answer on it
type wire struct {
	conn    net.Conn
	pending *xsync.MapOf[uint64, chan responseResult]
	writeMu sync.Mutex
	closed  atomic.Bool
	once    sync.Once
}

// clientConnection is one slot of the connection pool. Its wire is dialed lazily
// and replaced after a failure.
type clientConnection struct {
	endpoint string
	parent   *clientTransport
	mu       sync.Mutex // protects current
	current  *wire
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	nextConnIndex atomic.Uint64 // Round Robin counter
	nextRequestID atomic.Uint64 // unique request IDs
	closed        atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("%s transport: at least one endpoint is required", t.connector.GetName())
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config
	t.closed.Store(false)

	connectionsPerEP := max(config.ConnectionsPerEndpoint, 1)
	t.connections = make([]*clientConnection, 0, len(config.Endpoints)*connectionsPerEP)

	connected := 0
	for _, endpoint := range config.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			c := &clientConnection{endpoint: endpoint, parent: t}
			t.connections = append(t.connections, c)

			// Dial eagerly; failed slots are dialed again on their next use
			if _, err := c.wire(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connected++
		}
	}

	if connected == 0 {
		t.closeConnections()
		return fmt.Errorf("%s transport: failed to connect to any endpoint", t.connector.GetName())
	}

	Logger.Infof("Connected %d out of %d connections to %d endpoints using %s transport",
		connected, len(t.connections), len(config.Endpoints), t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(ctx context.Context, collection string, req []byte) ([]byte, error) {
	if len(t.connections) == 0 {
		return nil, fmt.Errorf("%s transport not initialized", t.connector.GetName())
	}

	// Every attempt uses the next connection (round-robin)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(t.config.RetryCount, 0))),
		ctx,
	)
	return backoff.RetryWithData(func() ([]byte, error) {
		data, err := t.send(ctx, collection, req)
		if err != nil {
			Logger.Debugf("Request for collection %s failed: %v", collection, err)
		}
		return data, err
	}, policy)
}

func (t *clientTransport) Close() error {
	t.closed.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send performs a single attempt. Errors that a retry cannot fix are marked permanent.
func (t *clientTransport) send(ctx context.Context, collection string, req []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, backoff.Permanent(errTransportClosed)
	}

	w, err := t.nextConnection().wire()
	if err != nil {
		return nil, err
	}

	// Register the request before writing it, the answer may arrive at any time
	requestID := t.nextRequestID.Add(1)
	respCh := make(chan responseResult, 1)
	w.pending.Store(requestID, respCh)
	defer w.pending.Delete(requestID)
	if w.closed.Load() {
		return nil, net.ErrClosed
	}

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	if err := w.write(requestID, collection, req, timeout); err != nil {
		w.fail(err)
		return nil, err
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request %d timed out after %s", requestID, timeout)
	case <-ctx.Done():
		return nil, backoff.Permanent(ctx.Err())
	}
}

// nextConnection selects the next connection via Round Robin
func (t *clientTransport) nextConnection() *clientConnection {
	if len(t.connections) == 1 {
		return t.connections[0]
	}
	return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	for _, c := range t.connections {
		c.mu.Lock()
		if c.current != nil {
			c.current.fail(errTransportClosed)
		}
		c.current = nil
		c.mu.Unlock()
	}
	t.connections = nil
}

// wire returns the established wire of the slot and dials a new one if needed
func (c *clientConnection) wire() (*wire, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && !c.current.closed.Load() {
		return c.current, nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}

	w := &wire{
		conn:    conn,
		pending: xsync.NewMapOf[uint64, chan responseResult](),
	}
	c.current = w
	go w.readResponses()
	return w, nil
}

// write sends one request frame
func (w *wire) write(requestID uint64, collection string, req []byte, timeout time.Duration) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return writeFrame(w.conn, requestID, collection, req)
}

// readResponses reads responses in a loop and distributes them to waiting requests.
// It ends when the connection fails or is closed.
func (w *wire) readResponses() {
	for {
		requestID, collection, data, err := readFrame(w.conn, nil)
		if err != nil {
			w.fail(errors.Wrap(err, "error reading response"))
			return
		}

		respCh, found := w.pending.Load(requestID)
		if !found {
			// the request has already timed out or was cancelled
			Logger.Warningf("Received response for unknown request ID %d (collection %s)", requestID, collection)
			continue
		}
		select {
		case respCh <- responseResult{data: data}:
		default:
		}
	}
}

// fail closes the wire and hands err to every waiting request
func (w *wire) fail(err error) {
	w.once.Do(func() {
		w.closed.Store(true)
		_ = w.conn.Close()
		w.pending.Range(func(_ uint64, respCh chan responseResult) bool {
			select {
			case respCh <- responseResult{err: err}:
			default:
			}
			return true
		})
	})
}
