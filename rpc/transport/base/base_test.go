package base

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test connectors (plain tcp on a pre-made listener)
// --------------------------------------------------------------------------

type testServerConnector struct {
	listener net.Listener
}

func (c *testServerConnector) Listen(common.ServerConfig) (net.Listener, error) {
	return c.listener, nil
}

func (c *testServerConnector) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

func (c *testServerConnector) GetName() string { return "test" }

type testClientConnector struct{}

func (c *testClientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

func (c *testClientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

func (c *testClientConnector) GetName() string { return "test" }

// startServer serves handler on a random local port and returns its address.
// The server is stopped when the test ends.
func startServer(t *testing.T, handler transport.ServerHandleFunc) (string, context.CancelFunc) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	st := NewBaseServerTransport(&testServerConnector{listener: listener}, 16, 4)
	st.RegisterHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- st.Listen(ctx, common.ServerConfig{Endpoint: listener.Addr().String(), TimeoutSecond: 5})
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return listener.Addr().String(), cancel
}

func newClient(t *testing.T, config common.ClientConfig) transport.IRPCClientTransport {
	t.Helper()
	ct := NewBaseClientTransport(&testClientConnector{})
	require.NoError(t, ct.Connect(config))
	t.Cleanup(func() { _ = ct.Close() })
	return ct
}

func echo(collection string, req []byte) []byte {
	return append([]byte(collection+":"), req...)
}

// --------------------------------------------------------------------------
// Frames
// --------------------------------------------------------------------------

func TestFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 42, "users", []byte("payload")))
	require.NoError(t, writeFrame(&buf, 43, "", nil))

	// the payload does not fit into the buffer, readFrame has to allocate
	id, collection, data, err := readFrame(&buf, make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "users", collection)
	assert.Equal(t, "payload", string(data))

	id, collection, data, err = readFrame(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(43), id)
	assert.Equal(t, "", collection)
	assert.Empty(t, data)

	_, _, _, err = readFrame(&buf, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 1, "users", []byte("payload")))
	frame := buf.Bytes()

	_, _, _, err := readFrame(bytes.NewReader(frame[:headerSize-1]), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, _, _, err = readFrame(bytes.NewReader(frame[:len(frame)-1]), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameCollectionTooLong(t *testing.T) {
	err := writeFrame(io.Discard, 1, strings.Repeat("x", 1<<16), nil)
	assert.Error(t, err)
}

// --------------------------------------------------------------------------
// Client and server
// --------------------------------------------------------------------------

func TestSendAndReceive(t *testing.T) {
	addr, _ := startServer(t, echo)
	ct := newClient(t, common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 5, RetryCount: 2})

	resp, err := ct.Send(context.Background(), "users", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "users:payload", string(resp))

	// payloads larger than the pooled server buffers
	large := bytes.Repeat([]byte("x"), 1024)
	resp, err = ct.Send(context.Background(), "orders", large)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("orders:"), large...), resp)
}

func TestConcurrentRequestsAreMatched(t *testing.T) {
	// answer slower for small ids so that responses arrive out of order
	addr, _ := startServer(t, func(collection string, req []byte) []byte {
		if len(req) > 0 && req[0]%2 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		return echo(collection, req)
	})
	ct := newClient(t, common.ClientConfig{
		Endpoints:              []string{addr},
		TimeoutSecond:          5,
		RetryCount:             2,
		ConnectionsPerEndpoint: 2,
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			collection := fmt.Sprintf("c%d", i)
			req := []byte{byte(i), 'x'}
			resp, err := ct.Send(context.Background(), collection, req)
			if assert.NoError(t, err) {
				assert.Equal(t, echo(collection, req), resp)
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectErrors(t *testing.T) {
	ct := NewBaseClientTransport(&testClientConnector{})
	assert.Error(t, ct.Connect(common.ClientConfig{}))

	// nothing listens on the address of a closed listener
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	assert.Error(t, ct.Connect(common.ClientConfig{Endpoints: []string{addr}}))

	_, err = ct.Send(context.Background(), "users", nil)
	assert.Error(t, err)
}

func TestSendAfterServerStopped(t *testing.T) {
	addr, stop := startServer(t, echo)
	ct := newClient(t, common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 1, RetryCount: 1})

	_, err := ct.Send(context.Background(), "users", nil)
	require.NoError(t, err)

	stop()
	require.Eventually(t, func() bool {
		_, err := ct.Send(context.Background(), "users", nil)
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSendHonorsContext(t *testing.T) {
	release := make(chan struct{})
	addr, _ := startServer(t, func(collection string, req []byte) []byte {
		<-release
		return echo(collection, req)
	})
	defer close(release)
	ct := newClient(t, common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 10, RetryCount: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := ct.Send(ctx, "users", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSendAfterClose(t *testing.T) {
	addr, _ := startServer(t, echo)
	ct := NewBaseClientTransport(&testClientConnector{})
	require.NoError(t, ct.Connect(common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 1}))
	require.NoError(t, ct.Close())

	_, err := ct.Send(context.Background(), "users", nil)
	assert.Error(t, err)
}

func TestMountedHandlersWithoutEndpoint(t *testing.T) {
	st := NewBaseServerTransport(&testServerConnector{}, 16, 0).(*serverTransport)
	assert.Equal(t, 1, st.maxWorkersPerConn)
	assert.Nil(t, st.startMountServer(common.ServerConfig{}))

	st.Mount("/metrics", nil)
	assert.Nil(t, st.startMountServer(common.ServerConfig{}))
}

func TestListenWithoutHandler(t *testing.T) {
	st := NewBaseServerTransport(&testServerConnector{}, 16, 1)
	assert.Error(t, st.Listen(context.Background(), common.ServerConfig{}))
}
