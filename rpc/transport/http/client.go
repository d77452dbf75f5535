package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/cenkalti/backoff/v4"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (transport *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("http transport: at least one endpoint is required")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Set the client and server URLs
	transport.client = client
	transport.serverURLs = parsedURLs
	transport.counter.Store(0)
	transport.retryCount = max(config.RetryCount, 0)

	// No error
	return nil
}

func (transport *httpClientTransport) Send(ctx context.Context, collection string, req []byte) ([]byte, error) {
	// Check if the transport is initialized
	if transport.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Send the request with exponential backoff; every attempt goes to the next server (round-robin)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(transport.retryCount)),
		ctx,
	)
	return backoff.RetryWithData(func() ([]byte, error) {
		return transport.send(ctx, collection, req)
	}, policy)
}

func (transport *httpClientTransport) Close() error {
	// Close the client
	if transport.client != nil {
		transport.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	transport.client = nil
	transport.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send performs a single attempt. Errors that a retry cannot fix are marked permanent.
func (transport *httpClientTransport) send(ctx context.Context, collection string, req []byte) ([]byte, error) {
	idx := transport.counter.Add(1) % uint32(len(transport.serverURLs))
	requestURL := collectionURL(transport.serverURLs[idx], collection)

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL.String(), bytes.NewReader(req))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := transport.client.Do(httpRequest)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Server errors may be transient, client errors are not
	if httpResponse.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}
	if httpResponse.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("http error: %s", httpResponse.Status))
	}

	// Read the response body
	return io.ReadAll(httpResponse.Body)
}

// collectionURL appends the collection as a single escaped path segment to base,
// so that names containing '/' or '%' address the right collection
func collectionURL(base *url.URL, collection string) *url.URL {
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/" + collection
	u.RawPath = strings.TrimSuffix(base.EscapedPath(), "/") + "/" + url.PathEscape(collection)
	return &u
}
