package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, config common.ServerConfig) *httptest.Server {
	t.Helper()
	st := NewHttpServerTransport().(*httpServerTransport)
	st.RegisterHandler(func(collection string, req []byte) []byte {
		return append([]byte(collection+":"), req...)
	})
	st.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	}))
	server := httptest.NewServer(st.httpHandler(config))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, endpoints ...string) *httpClientTransport {
	t.Helper()
	ct := NewHttpClientTransport().(*httpClientTransport)
	require.NoError(t, ct.Connect(common.ClientConfig{Endpoints: endpoints, TimeoutSecond: 5, RetryCount: 3}))
	t.Cleanup(func() { _ = ct.Close() })
	return ct
}

func TestSendRoutesByCollection(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})
	ct := newTestClient(t, server.URL)

	resp, err := ct.Send(context.Background(), "users", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "users:payload", string(resp))

	resp, err = ct.Send(context.Background(), "orders", nil)
	require.NoError(t, err)
	assert.Equal(t, "orders:", string(resp))
}

func TestMountedHandler(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "metrics", string(body))
}

func TestCORS(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{CORSOrigins: []string{"http://example.com"}})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/users", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSendRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()
	ct := newTestClient(t, server.URL)

	resp, err := ct.Send(context.Background(), "c", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()
	ct := newTestClient(t, server.URL)

	_, err := ct.Send(context.Background(), "c", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSendWithoutConnect(t *testing.T) {
	_, err := NewHttpClientTransport().Send(context.Background(), "c", nil)
	assert.Error(t, err)
	assert.Error(t, NewHttpClientTransport().Connect(common.ClientConfig{}))
}

func TestSendEscapesCollection(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})
	ct := newTestClient(t, server.URL+"/")

	for _, collection := range []string{"users/with slash", "100%", "a?b#c", "ünïcode"} {
		resp, err := ct.Send(context.Background(), collection, []byte("x"))
		require.NoError(t, err, collection)
		assert.Equal(t, collection+":x", string(resp))
	}
}
