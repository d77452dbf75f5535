package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/ValentinKolb/dotKV/lib/dotpath"
	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Backend is an in-memory store.IBackend.
type Backend struct {
	collections *xsync.MapOf[string, *collectionImpl]
	closed      atomic.Bool
}

type collectionImpl struct {
	backend *Backend
	docs    *xsync.MapOf[string, store.Document]
}

// New creates a new, empty in-memory backend.
func New() *Backend {
	return &Backend{
		collections: xsync.NewMapOf[string, *collectionImpl](),
	}
}

func (b *Backend) collection(name string) *collectionImpl {
	c, _ := b.collections.LoadOrCompute(name, func() *collectionImpl {
		return &collectionImpl{
			backend: b,
			docs:    xsync.NewMapOf[string, store.Document](),
		}
	})
	return c
}

// check returns an error if the backend was closed or the context is done.
func (c *collectionImpl) check(ctx context.Context) error {
	if c.backend.closed.Load() {
		return store.NewError(store.RetCClosed, "memory backend is closed")
	}
	if err := ctx.Err(); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

// --------------------------------------------------------------------------
// Backend Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (b *Backend) Collection(name string) (store.IStore, error) {
	if b.closed.Load() {
		return nil, store.NewError(store.RetCClosed, "memory backend is closed")
	}
	return b.collection(name), nil
}

func (b *Backend) Ping(_ context.Context) error {
	if b.closed.Load() {
		return store.NewError(store.RetCClosed, "memory backend is closed")
	}
	return nil
}

func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (c *collectionImpl) FindAll(ctx context.Context) ([]store.Document, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, c.docs.Size())
	c.docs.Range(func(_ string, doc store.Document) bool {
		docs = append(docs, copyDoc(doc))
		return true
	})
	return docs, nil
}

func (c *collectionImpl) FindOne(ctx context.Context, key string) (store.Document, bool, error) {
	if err := c.check(ctx); err != nil {
		return store.Document{}, false, err
	}
	doc, ok := c.docs.Load(key)
	if !ok {
		return store.Document{}, false, nil
	}
	return copyDoc(doc), true, nil
}

func (c *collectionImpl) InsertOne(ctx context.Context, key string, value any) error {
	return c.insert(ctx, uuid.NewString(), key, value)
}

// InsertWithID inserts a document with a caller-chosen id into the named collection.
// Replicated state machines use it to keep document ids identical on every replica.
func (b *Backend) InsertWithID(ctx context.Context, collection, id, key string, value any) error {
	return b.collection(collection).insert(ctx, id, key, value)
}

func (c *collectionImpl) insert(ctx context.Context, id, key string, value any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	doc := store.Document{ID: id, Key: key, Value: v}
	if _, loaded := c.docs.LoadOrStore(key, doc); loaded {
		return store.NewError(store.RetCDuplicateKey, fmt.Sprintf("duplicate key: %s", key))
	}
	return nil
}

func (c *collectionImpl) UpdateOne(ctx context.Context, key string, value any) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	v, err := normalize(value)
	if err != nil {
		return false, err
	}
	matched := false
	c.docs.Compute(key, func(old store.Document, loaded bool) (store.Document, bool) {
		if !loaded {
			return old, true
		}
		matched = true
		old.Value = v
		old.Revision++
		return old, false
	})
	return matched, nil
}

func (c *collectionImpl) DeleteOne(ctx context.Context, key string) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	_, deleted := c.docs.LoadAndDelete(key)
	return deleted, nil
}

func (c *collectionImpl) DeleteMany(ctx context.Context) (int, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	count := 0
	c.docs.Range(func(key string, _ store.Document) bool {
		if _, ok := c.docs.LoadAndDelete(key); ok {
			count++
		}
		return true
	})
	return count, nil
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// snapshot is the serialized form of a backend: collection name -> documents sorted by key.
type snapshot map[string][]store.Document

// Save writes a JSON snapshot of all collections to w.
// Concurrent writes during Save may or may not be part of the snapshot.
func (b *Backend) Save(w io.Writer) error {
	snap := make(snapshot)
	b.collections.Range(func(name string, c *collectionImpl) bool {
		docs := make([]store.Document, 0, c.docs.Size())
		c.docs.Range(func(_ string, doc store.Document) bool {
			docs = append(docs, doc)
			return true
		})
		sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
		snap[name] = docs
		return true
	})
	return json.NewEncoder(w).Encode(snap)
}

// Load replaces the content of the backend with a snapshot written by Save.
func (b *Backend) Load(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode memory snapshot: %w", err)
	}
	b.collections.Clear()
	for name, docs := range snap {
		c := b.collection(name)
		for _, doc := range docs {
			c.docs.Store(doc.Key, doc)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func normalize(value any) (any, error) {
	v, err := dotpath.Normalize(value)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	return v, nil
}

func copyDoc(doc store.Document) store.Document {
	doc.Value = dotpath.Clone(doc.Value)
	return doc
}
