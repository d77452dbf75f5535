// Package client manages the connection to a persisted backend and keeps track of the
// databases opened on it.
//
// A Client wraps a store.IBackend. It has to be connected before databases can load
// their cache or write to their collection. Databases register themselves with the
// client on construction, which allows bulk operations such as DeleteAll for test
// and cleanup flows.
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dotKV/lib/dberr"
	"github.com/ValentinKolb/dotKV/lib/dotpath"
	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var log = logger.GetLogger("client")

// Database is what the client knows about a registered database.
type Database interface {
	// Name returns the logical name of the database.
	Name() string
	// DeleteAll removes every entry of the database. It returns false if the database was already empty.
	DeleteAll(ctx context.Context) (bool, error)
}

// Options configure a Client.
type Options struct {
	// InitialData seeds every database whose collection is empty on load.
	// Top-level keys become entries.
	InitialData map[string]any
}

// Client is the connection handle shared by all databases of one backend.
type Client struct {
	backend     store.IBackend
	initialData map[string]any
	connected   atomic.Bool

	mu        sync.RWMutex
	databases []Database
}

// New creates a disconnected client for backend.
// The initial data is normalized to the JSON value model.
func New(backend store.IBackend, opts Options) (*Client, error) {
	initial := map[string]any{}
	if opts.InitialData != nil {
		v, err := dotpath.Normalize(opts.InitialData)
		if err != nil {
			return nil, err
		}
		initial = v.(map[string]any)
	}
	return &Client{
		backend:     backend,
		initialData: initial,
	}, nil
}

// Connect pings the backend and marks the client as connected.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.backend.Ping(ctx); err != nil {
		return errors.Wrap(err, "could not connect to backend")
	}
	c.connected.Store(true)
	log.Infof("connected to backend")
	return nil
}

// Disconnect marks the client as disconnected and closes the backend.
// A disconnected client cannot be connected again.
func (c *Client) Disconnect(_ context.Context) error {
	if !c.connected.Swap(false) {
		return nil
	}
	log.Infof("disconnected from backend")
	return c.backend.Close()
}

// Connected reports whether the client is connected.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// InitialData returns a copy of the configured seed data.
func (c *Client) InitialData() map[string]any {
	return dotpath.Clone(c.initialData).(map[string]any)
}

// Collection returns the named collection of the backend.
func (c *Client) Collection(name string) (store.IStore, error) {
	if !c.Connected() {
		return nil, dberr.ConnectionNotEstablished()
	}
	return c.backend.Collection(name)
}

// Register adds a database to the list of databases of this client.
func (c *Client) Register(db Database) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databases = append(c.databases, db)
}

// Databases returns all registered databases in registration order.
func (c *Client) Databases() []Database {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Database, len(c.databases))
	copy(out, c.databases)
	return out
}

// DeleteAll clears every registered database. It stops at the first error.
func (c *Client) DeleteAll(ctx context.Context) error {
	for _, db := range c.Databases() {
		if _, err := db.DeleteAll(ctx); err != nil {
			return errors.Wrapf(err, "could not clear database %s", db.Name())
		}
	}
	return nil
}
