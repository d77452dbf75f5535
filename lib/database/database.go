package database

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dotKV/lib/client"
	"github.com/ValentinKolb/dotKV/lib/dberr"
	"github.com/ValentinKolb/dotKV/lib/dotpath"
	"github.com/ValentinKolb/dotKV/lib/mirror"
	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("database")

// PingKey is the key written and deleted by Ping.
const PingKey = "___PING___"

// Connection is the connection handle a database is bound to. *client.Client implements it.
type Connection interface {
	Connected() bool
	InitialData() map[string]any
	Collection(name string) (store.IStore, error)
	Register(db client.Database)
}

// Options configure a Database.
type Options struct {
	// Name is the logical name of the database (required).
	Name string
	// Collection is the name of the persisted collection. Defaults to Name.
	Collection string
}

// State is the lifecycle state of a Database.
type State uint32

const (
	StateUninitialized State = iota
	StateLoadingCache
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateLoadingCache:
		return "LoadingCache"
	case StateReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// RawEntry is a persisted document without store metadata.
type RawEntry struct {
	Key   string `json:"__KEY"`
	Value any    `json:"__VALUE"`
}

// Latency holds the durations measured by Ping.
type Latency struct {
	Read   time.Duration `json:"readLatency"`
	Write  time.Duration `json:"writeLatency"`
	Delete time.Duration `json:"deleteLatency"`
}

// Database is the dot-path key/value facade of one collection.
type Database struct {
	name       string
	collection string
	conn       Connection
	coll       store.IStore
	mirror     *mirror.Cache
	state      atomic.Uint32
	metrics    *opMetrics
}

// New creates a database bound to conn, loads its cache and registers it with the connection.
// The connection must be connected.
func New(ctx context.Context, conn Connection, opts Options) (*Database, error) {
	if opts.Name == "" {
		return nil, dberr.RequiredParameterMissing("name")
	}
	if opts.Collection == "" {
		opts.Collection = opts.Name
	}
	coll, err := conn.Collection(opts.Collection)
	if err != nil {
		return nil, err
	}

	db := &Database{
		name:       opts.Name,
		collection: opts.Collection,
		conn:       conn,
		coll:       coll,
		mirror:     mirror.New(),
		metrics:    newOpMetrics(opts.Name),
	}
	if err := db.Reload(ctx); err != nil {
		return nil, err
	}
	conn.Register(db)
	return db, nil
}

// Reload replaces the mirror with the persisted documents.
// If the collection is empty, the initial data of the connection is written to it.
func (db *Database) Reload(ctx context.Context) error {
	db.state.Store(uint32(StateLoadingCache))
	if err := db.loadCache(ctx); err != nil {
		db.state.Store(uint32(StateUninitialized))
		return err
	}
	db.state.Store(uint32(StateReady))
	return nil
}

func (db *Database) loadCache(ctx context.Context) error {
	if err := db.checkConnected(); err != nil {
		return err
	}
	var docs []store.Document
	err := db.storeCall("findAll", func() (err error) {
		docs, err = db.coll.FindAll(ctx)
		return err
	})
	if err != nil {
		return err
	}

	db.mirror.Clear()
	seed := db.conn.InitialData()
	if len(docs) == 0 && len(seed) > 0 {
		keys := make([]string, 0, len(seed))
		for k := range seed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			db.mirror.Put(k, seed[k])
			if err := db.persist(ctx, k); err != nil {
				return err
			}
		}
		log.Infof("seeded database %s with %d entries", db.name, len(keys))
		return nil
	}

	for _, doc := range docs {
		v, err := dotpath.Normalize(doc.Value)
		if err != nil {
			return err
		}
		db.mirror.Put(doc.Key, v)
	}
	log.Debugf("loaded %d entries into cache of database %s", len(docs), db.name)
	return nil
}

// Name returns the logical name of the database.
func (db *Database) Name() string {
	return db.name
}

// CollectionName returns the name of the persisted collection.
func (db *Database) CollectionName() string {
	return db.collection
}

// State returns the current lifecycle state.
func (db *Database) State() State {
	return State(db.state.Load())
}

// --------------------------------------------------------------------------
// Mirror Reads
// --------------------------------------------------------------------------

// Get returns the value at key, nil if nothing is stored there.
func (db *Database) Get(key string) (any, error) {
	db.metrics.count("get")
	return db.mirror.Get(key)
}

// Has reports whether a non-nil value is stored at key.
func (db *Database) Has(key string) (bool, error) {
	v, err := db.mirror.Get(key)
	return v != nil, err
}

// All returns a copy of all entries.
func (db *Database) All() map[string]any {
	db.metrics.count("all")
	return db.mirror.ToObject()
}

// Size returns the number of top-level entries.
func (db *Database) Size() int {
	return db.mirror.Len()
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// Set writes value at key and persists the top-level entry.
// If value is an object or an array, the whole new value of the top-level key is returned,
// otherwise the (normalized) value itself.
func (db *Database) Set(ctx context.Context, key string, value any) (any, error) {
	if _, err := dotpath.Split(key); err != nil {
		return nil, err
	}
	v, err := dotpath.Normalize(value)
	if err != nil {
		return nil, err
	}
	if err := db.checkConnected(); err != nil {
		return nil, err
	}
	db.metrics.count("set")

	subtree, err := db.mirror.Set(key, v)
	if err != nil {
		return nil, err
	}
	if err := db.persist(ctx, topLevel(key)); err != nil {
		return nil, err
	}
	if dotpath.IsObject(v) || dotpath.IsArray(v) {
		return subtree, nil
	}
	return v, nil
}

// Delete removes the value at key. It returns false without touching the store
// if nothing is stored at key.
func (db *Database) Delete(ctx context.Context, key string) (bool, error) {
	has, err := db.Has(key)
	if err != nil || !has {
		return false, err
	}
	if err := db.checkConnected(); err != nil {
		return false, err
	}
	db.metrics.count("delete")

	if _, err := db.mirror.Delete(key); err != nil {
		return false, err
	}
	if err := db.persist(ctx, topLevel(key)); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes all entries. It returns false without touching the store if the
// database is already empty.
func (db *Database) Clear(ctx context.Context) (bool, error) {
	if db.mirror.Len() == 0 {
		return false, nil
	}
	if err := db.checkConnected(); err != nil {
		return false, err
	}
	db.metrics.count("clear")

	db.mirror.Clear()
	err := db.storeCall("deleteMany", func() error {
		_, err := db.coll.DeleteMany(ctx)
		return err
	})
	return err == nil, err
}

// DeleteAll is an alias for Clear.
func (db *Database) DeleteAll(ctx context.Context) (bool, error) {
	return db.Clear(ctx)
}

// --------------------------------------------------------------------------
// Store Reads
// --------------------------------------------------------------------------

// Raw returns all persisted documents, read directly from the store.
func (db *Database) Raw(ctx context.Context) ([]RawEntry, error) {
	if err := db.checkConnected(); err != nil {
		return nil, err
	}
	db.metrics.count("raw")

	var docs []store.Document
	err := db.storeCall("findAll", func() (err error) {
		docs, err = db.coll.FindAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	entries := make([]RawEntry, len(docs))
	for i, doc := range docs {
		entries[i] = RawEntry{Key: doc.Key, Value: doc.Value}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// GetFromDatabase reads the value at key directly from the store, bypassing the mirror.
func (db *Database) GetFromDatabase(ctx context.Context, key string) (any, error) {
	segs, err := dotpath.Split(key)
	if err != nil {
		return nil, err
	}
	if err := db.checkConnected(); err != nil {
		return nil, err
	}

	var (
		doc   store.Document
		found bool
	)
	err = db.storeCall("findOne", func() (err error) {
		doc, found, err = db.coll.FindOne(ctx, segs[0])
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return dotpath.Read(map[string]any{segs[0]: doc.Value}, segs), nil
}

// AllFromDatabase returns all entries directly from the store, bypassing the mirror.
func (db *Database) AllFromDatabase(ctx context.Context) (map[string]any, error) {
	entries, err := db.Raw(ctx)
	if err != nil {
		return nil, err
	}
	all := make(map[string]any, len(entries))
	for _, e := range entries {
		all[e.Key] = e.Value
	}
	return all, nil
}

// Ping measures the latency of a store read, a write and a delete of PingKey.
func (db *Database) Ping(ctx context.Context) (Latency, error) {
	var lat Latency
	if err := db.checkConnected(); err != nil {
		return lat, err
	}

	start := time.Now()
	if _, err := db.Raw(ctx); err != nil {
		return lat, err
	}
	lat.Read = time.Since(start)

	start = time.Now()
	if _, err := db.Set(ctx, PingKey, PingKey); err != nil {
		return lat, err
	}
	lat.Write = time.Since(start)

	start = time.Now()
	if _, err := db.Delete(ctx, PingKey); err != nil {
		return lat, err
	}
	lat.Delete = time.Since(start)

	return lat, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (db *Database) checkConnected() error {
	if !db.conn.Connected() {
		return dberr.ConnectionNotEstablished()
	}
	return nil
}

// persist writes the mirror's current value of a top-level key to the store:
// deleted if the mirror no longer holds the key, otherwise updated or inserted.
func (db *Database) persist(ctx context.Context, top string) error {
	value, ok := db.mirror.Load(top)
	if !ok {
		return db.storeCall("deleteOne", func() error {
			_, err := db.coll.DeleteOne(ctx, top)
			return err
		})
	}

	var found bool
	err := db.storeCall("findOne", func() (err error) {
		_, found, err = db.coll.FindOne(ctx, top)
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		err = db.storeCall("insertOne", func() error {
			return db.coll.InsertOne(ctx, top, value)
		})
		// a concurrent writer inserted the key first
		if !errors.Is(err, store.ErrDuplicateKey) {
			return err
		}
	}
	return db.storeCall("updateOne", func() error {
		_, err := db.coll.UpdateOne(ctx, top, value)
		return err
	})
}

func topLevel(key string) string {
	segs, _ := dotpath.Split(key)
	return segs[0]
}
