// Package pogrebstore implements store.IBackend with embedded pogreb databases.
//
// Every collection is a separate pogreb database in its own directory below the
// backend's data directory. Documents are stored JSON encoded under their key.
// Writes to a collection are serialized, reads are not.
package pogrebstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akrylysov/pogreb"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ValentinKolb/dotKV/lib/store"
)

var log = logger.GetLogger("store")

// Option configures a Backend.
type Option func(*Backend)

// WithSyncInterval makes pogreb fsync its files in the background at the given interval.
// By default, files are only synced on Close.
func WithSyncInterval(d time.Duration) Option {
	return func(b *Backend) {
		b.opts.BackgroundSyncInterval = d
	}
}

// Backend is a store.IBackend storing each collection in a pogreb database.
type Backend struct {
	dir         string
	opts        *pogreb.Options
	collections *xsync.MapOf[string, *collectionImpl]
	closed      atomic.Bool
}

type collectionImpl struct {
	backend *Backend
	db      *pogreb.DB
	writeMu sync.Mutex
}

// record is the persisted form of a document. The key is the pogreb key.
type record struct {
	ID       string `json:"id"`
	Value    any    `json:"value"`
	Revision uint64 `json:"rev"`
}

// Open creates a backend storing its collections below dir.
func Open(dir string, options ...Option) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create data dir %s", dir)
	}
	b := &Backend{
		dir:         dir,
		opts:        &pogreb.Options{},
		collections: xsync.NewMapOf[string, *collectionImpl](),
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Backend Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (b *Backend) Collection(name string) (store.IStore, error) {
	if b.closed.Load() {
		return nil, store.NewError(store.RetCClosed, "pogreb backend is closed")
	}
	var openErr error
	c, _ := b.collections.Compute(name, func(old *collectionImpl, loaded bool) (*collectionImpl, bool) {
		if loaded {
			return old, false
		}
		path := filepath.Join(b.dir, url.PathEscape(name))
		db, err := pogreb.Open(path, b.opts)
		if err != nil {
			openErr = err
			return nil, true
		}
		log.Debugf("opened pogreb collection %s at %s", name, path)
		return &collectionImpl{backend: b, db: db}, false
	})
	if openErr != nil {
		return nil, internalError(openErr, fmt.Sprintf("could not open collection %s", name))
	}
	return c, nil
}

func (b *Backend) Ping(_ context.Context) error {
	if b.closed.Load() {
		return store.NewError(store.RetCClosed, "pogreb backend is closed")
	}
	if _, err := os.Stat(b.dir); err != nil {
		return internalError(err, "data dir not accessible")
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	var firstErr error
	b.collections.Range(func(name string, c *collectionImpl) bool {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "could not close collection %s", name)
		}
		return true
	})
	return firstErr
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (c *collectionImpl) FindAll(ctx context.Context) ([]store.Document, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, c.db.Count())
	it := c.db.Items()
	for {
		key, value, err := it.Next()
		if errors.Is(err, pogreb.ErrIterationDone) {
			break
		}
		if err != nil {
			return nil, internalError(err, "iteration failed")
		}
		doc, err := decode(key, value)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *collectionImpl) FindOne(ctx context.Context, key string) (store.Document, bool, error) {
	if err := c.check(ctx); err != nil {
		return store.Document{}, false, err
	}
	value, err := c.db.Get([]byte(key))
	if err != nil {
		return store.Document{}, false, internalError(err, "get failed")
	}
	if value == nil {
		return store.Document{}, false, nil
	}
	doc, err := decode([]byte(key), value)
	return doc, err == nil, err
}

func (c *collectionImpl) InsertOne(ctx context.Context, key string, value any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	exists, err := c.db.Has([]byte(key))
	if err != nil {
		return internalError(err, "has failed")
	}
	if exists {
		return store.NewError(store.RetCDuplicateKey, fmt.Sprintf("duplicate key: %s", key))
	}
	return c.put(key, record{ID: uuid.NewString(), Value: value})
}

func (c *collectionImpl) UpdateOne(ctx context.Context, key string, value any) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	raw, err := c.db.Get([]byte(key))
	if err != nil {
		return false, internalError(err, "get failed")
	}
	if raw == nil {
		return false, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, internalError(err, fmt.Sprintf("corrupt record for key %q", key))
	}
	rec.Value = value
	rec.Revision++
	return true, c.put(key, rec)
}

func (c *collectionImpl) DeleteOne(ctx context.Context, key string) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	exists, err := c.db.Has([]byte(key))
	if err != nil || !exists {
		return false, errOrNil(err, "has failed")
	}
	if err := c.db.Delete([]byte(key)); err != nil {
		return false, internalError(err, "delete failed")
	}
	return true, nil
}

func (c *collectionImpl) DeleteMany(ctx context.Context) (int, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// collect first, deleting while iterating is not supported
	var keys [][]byte
	it := c.db.Items()
	for {
		key, _, err := it.Next()
		if errors.Is(err, pogreb.ErrIterationDone) {
			break
		}
		if err != nil {
			return 0, internalError(err, "iteration failed")
		}
		keys = append(keys, key)
	}
	for i, key := range keys {
		if err := c.db.Delete(key); err != nil {
			return i, internalError(err, "delete failed")
		}
	}
	return len(keys), nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (c *collectionImpl) check(ctx context.Context) error {
	if c.backend.closed.Load() {
		return store.NewError(store.RetCClosed, "pogreb backend is closed")
	}
	if err := ctx.Err(); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (c *collectionImpl) put(key string, rec record) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return store.NewError(store.RetCInvalidOperation, errors.Wrap(err, "could not encode value").Error())
	}
	if err := c.db.Put([]byte(key), encoded); err != nil {
		return internalError(err, "put failed")
	}
	return nil
}

func decode(key, value []byte) (store.Document, error) {
	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return store.Document{}, internalError(err, fmt.Sprintf("corrupt record for key %q", key))
	}
	return store.Document{
		ID:       rec.ID,
		Key:      string(key),
		Value:    rec.Value,
		Revision: rec.Revision,
	}, nil
}

func internalError(err error, msg string) *store.Error {
	return store.NewError(store.RetCInternalError, errors.Wrap(err, msg).Error())
}

func errOrNil(err error, msg string) error {
	if err == nil {
		return nil
	}
	return internalError(err, msg)
}
