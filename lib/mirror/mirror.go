// Package mirror holds the in-memory copy of a database collection.
//
// The cache maps every top-level key to its whole value tree. Stored trees are never
// mutated in place: a write clones the affected top-level subtree, applies the path
// mutation on the clone and stores the clone back. Two concurrent writes below the same
// top-level key may therefore overwrite each other (last writer wins per top-level key).
package mirror

import (
	"sort"

	"github.com/ValentinKolb/dotKV/lib/dotpath"
	"github.com/puzpuzpuz/xsync/v3"
)

// Cache is the mirror of one persisted collection.
type Cache struct {
	entries *xsync.MapOf[string, any]
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: xsync.NewMapOf[string, any]()}
}

// --------------------------------------------------------------------------
// Path Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value at path, nil if nothing is stored there.
func (c *Cache) Get(path string) (any, error) {
	segs, err := dotpath.Split(path)
	if err != nil {
		return nil, err
	}
	top, ok := c.entries.Load(segs[0])
	if !ok {
		return nil, nil
	}
	if len(segs) == 1 {
		return dotpath.Clone(top), nil
	}
	return dotpath.Clone(dotpath.Read(map[string]any{segs[0]: top}, segs)), nil
}

// Set writes value at path and returns a copy of the new subtree of the top-level key.
// value must already be normalized (see dotpath.Normalize).
func (c *Cache) Set(path string, value any) (any, error) {
	segs, err := dotpath.Split(path)
	if err != nil {
		return nil, err
	}
	root := c.working(segs[0])
	dotpath.Write(root, segs, dotpath.Clone(value))
	c.entries.Store(segs[0], root[segs[0]])
	return dotpath.Clone(root[segs[0]]), nil
}

// Delete removes the value at path. It returns false if nothing was stored there.
// Deleting a top-level key removes the entry from the cache.
func (c *Cache) Delete(path string) (bool, error) {
	segs, err := dotpath.Split(path)
	if err != nil {
		return false, err
	}
	root := c.working(segs[0])
	if !dotpath.Remove(root, segs) {
		return false, nil
	}
	if len(segs) == 1 {
		c.entries.Delete(segs[0])
	} else {
		c.entries.Store(segs[0], root[segs[0]])
	}
	return true, nil
}

// working returns a single-entry object holding a deep copy of the subtree stored at top.
func (c *Cache) working(top string) map[string]any {
	root := make(map[string]any, 1)
	if v, ok := c.entries.Load(top); ok {
		root[top] = dotpath.Clone(v)
	}
	return root
}

// --------------------------------------------------------------------------
// Whole-Cache Operations
// --------------------------------------------------------------------------

// Load returns the subtree stored at a top-level key without copying it.
// The returned value must not be mutated.
func (c *Cache) Load(key string) (any, bool) {
	return c.entries.Load(key)
}

// Put stores a whole top-level entry, replacing any previous value.
func (c *Cache) Put(key string, value any) {
	c.entries.Store(key, value)
}

// ToObject returns a deep copy of the whole cache as a plain object.
func (c *Cache) ToObject() map[string]any {
	obj := make(map[string]any, c.entries.Size())
	c.entries.Range(func(key string, value any) bool {
		obj[key] = dotpath.Clone(value)
		return true
	})
	return obj
}

// Keys returns the top-level keys in ascending order.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, c.entries.Size())
	c.entries.Range(func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Len returns the number of top-level entries, including entries holding nil.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Clear removes every entry. It always returns true.
func (c *Cache) Clear() bool {
	c.entries.Clear()
	return true
}
