package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgrade(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()

	conn, err := (&clientConnector{}).Connect(listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	assert.NoError(t, (&clientConnector{}).UpgradeConnection(conn, common.ClientConfig{}))

	serverConn := <-accepted
	require.NotNil(t, serverConn)
	defer serverConn.Close()
	assert.NoError(t, (&serverConnector{}).UpgradeConnection(serverConn, common.ServerConfig{}))

	// non tcp connections are left alone
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	assert.NoError(t, upgrade(a))
}

func TestTCPTransport(t *testing.T) {
	// reserve a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	st := NewTCPDefaultServerTransport()
	st.RegisterHandler(func(collection string, req []byte) []byte {
		return append([]byte(collection+":"), req...)
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Listen(ctx, common.ServerConfig{Endpoint: addr, TimeoutSecond: 5}) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	ct := NewTCPClientTransport()
	// the server may not be listening yet
	require.Eventually(t, func() bool {
		return ct.Connect(common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 5, RetryCount: 2}) == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer ct.Close()

	resp, err := ct.Send(context.Background(), "users", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "users:payload", string(resp))
}
