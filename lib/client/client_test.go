package client

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/dotKV/lib/dberr"
	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/lib/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDatabase struct {
	name    string
	cleared int
}

func (f *fakeDatabase) Name() string { return f.name }

func (f *fakeDatabase) DeleteAll(context.Context) (bool, error) {
	f.cleared++
	return true, nil
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	c, err := New(backend, Options{})
	require.NoError(t, err)

	assert.False(t, c.Connected())
	_, err = c.Collection("users")
	assert.True(t, errors.Is(err, dberr.ErrConnectionNotEstablished))

	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.Connected())
	_, err = c.Collection("users")
	require.NoError(t, err)

	require.NoError(t, c.Disconnect(ctx))
	assert.False(t, c.Connected())
	assert.True(t, errors.Is(backend.Ping(ctx), store.ErrClosed))
	require.NoError(t, c.Disconnect(ctx))

	assert.Error(t, c.Connect(ctx))
}

func TestInitialDataIsCopied(t *testing.T) {
	c, err := New(memstore.New(), Options{InitialData: map[string]any{"user": map[string]any{"balance": 5}}})
	require.NoError(t, err)

	data := c.InitialData()
	assert.Equal(t, map[string]any{"user": map[string]any{"balance": 5.0}}, data)
	data["user"].(map[string]any)["balance"] = 1.0
	assert.Equal(t, 5.0, c.InitialData()["user"].(map[string]any)["balance"])

	_, err = New(memstore.New(), Options{InitialData: map[string]any{"bad": func() {}}})
	assert.True(t, errors.Is(err, dberr.ErrInvalidType))
}

func TestRegisterAndDeleteAll(t *testing.T) {
	c, err := New(memstore.New(), Options{})
	require.NoError(t, err)

	a, b := &fakeDatabase{name: "a"}, &fakeDatabase{name: "b"}
	c.Register(a)
	c.Register(b)

	dbs := c.Databases()
	require.Len(t, dbs, 2)
	assert.Equal(t, "a", dbs[0].Name())

	require.NoError(t, c.DeleteAll(context.Background()))
	assert.Equal(t, 1, a.cleared)
	assert.Equal(t, 1, b.cleared)
}
