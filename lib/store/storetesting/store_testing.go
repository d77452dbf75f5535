package storetesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BackendFactory creates a new, empty backend. Backends needing a data directory
// should use t.TempDir(). The suite closes every backend it creates.
type BackendFactory func(t testing.TB) store.IBackend

// RunStoreTests runs the conformance suite for a store.IBackend implementation.
func RunStoreTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Ping", func(t *testing.T) {
			testPing(t, factory)
		})

		t.Run("Insert&Find", func(t *testing.T) {
			testInsertFind(t, factory)
		})

		t.Run("DuplicateInsert", func(t *testing.T) {
			testDuplicateInsert(t, factory)
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory)
		})

		t.Run("DeleteOne", func(t *testing.T) {
			testDeleteOne(t, factory)
		})

		t.Run("FindAll&DeleteMany", func(t *testing.T) {
			testFindAllDeleteMany(t, factory)
		})

		t.Run("CollectionIsolation", func(t *testing.T) {
			testCollectionIsolation(t, factory)
		})

		t.Run("ScalarValues", func(t *testing.T) {
			testScalarValues(t, factory)
		})

		t.Run("ConcurrentInserts", func(t *testing.T) {
			testConcurrentInserts(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a backend, registers its Close with the test and returns the named collection.
func open(t testing.TB, factory BackendFactory, collection string) (store.IBackend, store.IStore) {
	backend := factory(t)
	t.Cleanup(func() { _ = backend.Close() })
	coll, err := backend.Collection(collection)
	require.NoError(t, err)
	return backend, coll
}

func sampleValue() any {
	return map[string]any{
		"name":    "alice",
		"balance": 5.5,
		"active":  true,
		"tags":    []any{"a", "b", 3.0},
		"nested":  map[string]any{"empty": nil, "deep": map[string]any{"x": 1.0}},
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPing(t *testing.T, factory BackendFactory) {
	backend, _ := open(t, factory, "ping")
	require.NoError(t, backend.Ping(context.Background()))
}

func testInsertFind(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "users")

	_, found, err := coll.FindOne(ctx, "user")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, coll.InsertOne(ctx, "user", sampleValue()))

	doc, found, err := coll.FindOne(ctx, "user")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user", doc.Key)
	assert.Equal(t, sampleValue(), doc.Value)
	assert.NotEmpty(t, doc.ID)
}

func testDuplicateInsert(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "dups")

	require.NoError(t, coll.InsertOne(ctx, "k", 1.0))
	err := coll.InsertOne(ctx, "k", 2.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrDuplicateKey), "got %v", err)

	doc, _, err := coll.FindOne(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Value)
}

func testUpdate(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "updates")

	matched, err := coll.UpdateOne(ctx, "missing", 1.0)
	require.NoError(t, err)
	assert.False(t, matched)
	_, found, err := coll.FindOne(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found, "update must not insert")

	require.NoError(t, coll.InsertOne(ctx, "k", map[string]any{"a": 1.0}))
	before, _, err := coll.FindOne(ctx, "k")
	require.NoError(t, err)

	matched, err = coll.UpdateOne(ctx, "k", map[string]any{"b": []any{"x"}})
	require.NoError(t, err)
	assert.True(t, matched)

	after, _, err := coll.FindOne(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": []any{"x"}}, after.Value)
	assert.Equal(t, before.ID, after.ID)
	assert.Greater(t, after.Revision, before.Revision)
}

func testDeleteOne(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "deletes")

	require.NoError(t, coll.InsertOne(ctx, "k", "v"))

	deleted, err := coll.DeleteOne(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = coll.DeleteOne(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found, err := coll.FindOne(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// the key can be reused after deletion
	require.NoError(t, coll.InsertOne(ctx, "k", "again"))
}

func testFindAllDeleteMany(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "bulk")

	docs, err := coll.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	want := map[string]any{"a": 1.0, "b": "two", "c": map[string]any{"three": 3.0}}
	for k, v := range want {
		require.NoError(t, coll.InsertOne(ctx, k, v))
	}

	docs, err = coll.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, len(want))
	got := make(map[string]any, len(docs))
	for _, d := range docs {
		got[d.Key] = d.Value
	}
	assert.Equal(t, want, got)

	count, err := coll.DeleteMany(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(want), count)

	docs, err = coll.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	count, err = coll.DeleteMany(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testCollectionIsolation(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	backend, first := open(t, factory, "first")
	second, err := backend.Collection("second")
	require.NoError(t, err)

	require.NoError(t, first.InsertOne(ctx, "shared", "first"))
	require.NoError(t, second.InsertOne(ctx, "shared", "second"))

	doc, _, err := first.FindOne(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Value)

	_, err = second.DeleteMany(ctx)
	require.NoError(t, err)

	docs, err := first.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// the same name yields the same collection
	again, err := backend.Collection("first")
	require.NoError(t, err)
	_, found, err := again.FindOne(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, found)
}

func testScalarValues(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "scalars")

	values := map[string]any{
		"null":   nil,
		"string": "text with \"quotes\" and \x00 bytes",
		"number": -12.25,
		"bool":   false,
		"array":  []any{},
		"object": map[string]any{},
	}
	for k, v := range values {
		require.NoError(t, coll.InsertOne(ctx, k, v))
	}
	for k, v := range values {
		doc, found, err := coll.FindOne(ctx, k)
		require.NoError(t, err)
		require.True(t, found, k)
		assert.Equal(t, v, doc.Value, k)
	}
}

func testConcurrentInserts(t *testing.T, factory BackendFactory) {
	ctx := context.Background()
	_, coll := open(t, factory, "concurrent")

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := coll.InsertOne(ctx, fmt.Sprintf("key-%02d", i), float64(i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	docs, err := coll.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, n)
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	for i, d := range docs {
		assert.Equal(t, fmt.Sprintf("key-%02d", i), d.Key)
		assert.Equal(t, float64(i), d.Value)
	}
}
