package server

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/lib/store/memstore"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	adapter := NewIStoreServerAdapter()
	backend := memstore.New()
	coll, err := backend.Collection("c")
	require.NoError(t, err)

	resp := adapter.Handle(ctx, common.NewInsertOneRequest("k", []byte(`{"a":1}`)), backend, coll)
	require.NoError(t, resp.AsError())

	resp = adapter.Handle(ctx, common.NewFindOneRequest("k"), backend, coll)
	require.NoError(t, resp.AsError())
	require.True(t, resp.Ok)
	require.Len(t, resp.Documents, 1)
	assert.JSONEq(t, `{"a":1}`, string(resp.Documents[0].Value))

	resp = adapter.Handle(ctx, common.NewFindOneRequest("missing"), backend, coll)
	require.NoError(t, resp.AsError())
	assert.False(t, resp.Ok)
	assert.Empty(t, resp.Documents)

	resp = adapter.Handle(ctx, common.NewInsertOneRequest("bad", []byte(`{`)), backend, coll)
	assert.ErrorIs(t, resp.AsError(), &store.Error{Code: store.RetCInvalidOperation})

	resp = adapter.Handle(ctx, &common.Message{MsgType: common.MsgTSuccess}, backend, coll)
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = adapter.Handle(ctx, common.NewPingRequest(), nil, nil)
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = adapter.Handle(ctx, common.NewDeleteManyRequest(), backend, coll)
	require.NoError(t, resp.AsError())
	assert.Equal(t, uint64(1), resp.Count)
}

func TestHandle(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{Backend: common.BackendMemory}, nil, serializer.NewJSONSerializer())
	s.backend = memstore.New()

	call := func(req []byte) common.Message {
		var resp common.Message
		require.NoError(t, s.serializer.Deserialize(s.handle("users", req), &resp))
		return resp
	}

	req, err := s.serializer.Serialize(*common.NewInsertOneRequest("alice", []byte(`30`)))
	require.NoError(t, err)
	resp := call(req)
	assert.Equal(t, common.MsgTInsertOne, resp.MsgType)
	assert.Empty(t, resp.Err)

	resp = call([]byte("garbage"))
	assert.Equal(t, common.MsgTError, resp.MsgType)

	users, _ := s.backend.Collection("users")
	doc, found, err := users.FindOne(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 30.0, doc.Value)
}

func TestOpenBackend(t *testing.T) {
	for _, backend := range []common.BackendType{common.BackendMemory, common.BackendSQLite, common.BackendPogreb} {
		t.Run(string(backend), func(t *testing.T) {
			b, err := OpenBackend(common.ServerConfig{Backend: backend, DataDir: t.TempDir()})
			require.NoError(t, err)
			defer b.Close()
			assert.NoError(t, b.Ping(context.Background()))
		})
	}

	_, err := OpenBackend(common.ServerConfig{Backend: "mongo"})
	assert.Error(t, err)

	_, err = OpenBackend(common.ServerConfig{Backend: common.BackendRaft, ReplicaID: 1})
	assert.Error(t, err)
}

func TestOpenPogrebWithSyncInterval(t *testing.T) {
	assert.Empty(t, pogrebOptions(common.ServerConfig{}))
	assert.Len(t, pogrebOptions(common.ServerConfig{SyncIntervalSecond: 1}), 1)

	ctx := context.Background()
	config := common.ServerConfig{Backend: common.BackendPogreb, DataDir: t.TempDir(), SyncIntervalSecond: 1}
	b, err := OpenBackend(config)
	require.NoError(t, err)
	coll, err := b.Collection("users")
	require.NoError(t, err)
	require.NoError(t, coll.InsertOne(ctx, "alice", 30.0))
	require.NoError(t, b.Close())

	b, err = OpenBackend(config)
	require.NoError(t, err)
	defer b.Close()
	coll, err = b.Collection("users")
	require.NoError(t, err)
	doc, found, err := coll.FindOne(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 30.0, doc.Value)
}
