package mirror

import (
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/dotKV/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := New()

	sub, err := c.Set("user.name", "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "a"}, sub)

	sub, err = c.Set("user.balance", 10.0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "a", "balance": 10.0}, sub)

	v, err := c.Get("user.balance")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	v, err = c.Get("user.missing.deeper")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = c.Get("")
	assert.True(t, errors.Is(err, dberr.ErrRequiredParameterMissing))
	_, err = c.Set("", 1.0)
	assert.True(t, errors.Is(err, dberr.ErrRequiredParameterMissing))
}

func TestCopyOnWrite(t *testing.T) {
	c := New()
	_, err := c.Set("obj", map[string]any{"a": 1.0})
	require.NoError(t, err)

	got, err := c.Get("obj")
	require.NoError(t, err)
	got.(map[string]any)["a"] = 99.0

	stored, _ := c.Load("obj")
	assert.Equal(t, map[string]any{"a": 1.0}, stored)

	snapshot := c.ToObject()
	_, err = c.Set("obj.b", 2.0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, snapshot["obj"])
}

func TestDelete(t *testing.T) {
	c := New()
	_, _ = c.Set("a.b", 1.0)
	_, _ = c.Set("a.c", 2.0)

	ok, err := c.Delete("a.b")
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ := c.Get("a")
	assert.Equal(t, map[string]any{"c": 2.0}, v)

	ok, err = c.Delete("a.b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Delete("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestKeysAndClear(t *testing.T) {
	c := New()
	c.Put("b", 1.0)
	c.Put("a", 2.0)
	c.Put("c", nil)

	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Clear())
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Clear())
}

func TestConcurrentWritesAreMemorySafe(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = c.Set("shared.leaf", float64(i))
				_, _ = c.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	v, err := c.Get("shared.leaf")
	require.NoError(t, err)
	assert.IsType(t, 0.0, v)
}
