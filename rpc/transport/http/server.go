package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rs/cors"
)

var Logger = logger.GetLogger("transport/rpc")

// shutdownTimeout bounds the graceful shutdown once the listen context is done
const shutdownTimeout = 5 * time.Second

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{
		mounts: make(map[string]http.Handler),
	}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	mounts  map[string]http.Handler
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Mount(path string, handler http.Handler) {
	t.mounts[path] = handler
}

func (t *httpServerTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	server := &http.Server{
		Addr:    config.Endpoint,
		Handler: t.httpHandler(config),
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", config.Endpoint)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		Logger.Infof("Shutting down HTTP server on %s", config.Endpoint)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// httpHandler builds the complete handler: rpc route, optional request logging and CORS
func (t *httpServerTransport) httpHandler(config common.ServerConfig) http.Handler {
	router := chi.NewRouter()

	// middlewares must be registered before any route
	router.Use(middleware.Recoverer)
	if config.LogLevel == "debug" {
		router.Use(loggerMiddleware)
	}
	for path, handler := range t.mounts {
		router.Method(http.MethodGet, path, handler)
	}
	router.Post("/{collection}", t.handleRequest)

	if len(config.CORSOrigins) == 0 {
		return router
	}
	return cors.New(cors.Options{
		AllowedOrigins: config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	// chi routes on the escaped path if it differs from the decoded one
	collection := chi.URLParam(r, "collection")
	if r.URL.RawPath != "" {
		var err error
		if collection, err = url.PathUnescape(collection); err != nil {
			http.Error(w, "Invalid collection", http.StatusBadRequest)
			return
		}
	}
	if collection == "" {
		http.Error(w, "Invalid collection", http.StatusBadRequest)
		return
	}

	// Read request body
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	if t.handler == nil {
		http.Error(w, "No handler registered", http.StatusServiceUnavailable)
		return
	}

	// Send the handler
	resp := t.handler(collection, body)

	// Write response
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("Failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
