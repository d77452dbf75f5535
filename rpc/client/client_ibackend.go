package client

import (
	"context"
	"encoding/json"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/serializer"
	"github.com/ValentinKolb/dotKV/rpc/transport"
)

// NewRPCBackend creates a new RPC backend
// The function takes a config, a transport and a serializer as parameters
// It returns a store.IBackend whose collections are hosted by a remote rpc server
func NewRPCBackend(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IBackend, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	Logger.Debugf("created rpc backend %s", config.String())

	// Return the RPC backend
	return &rpcBackend{
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

type rpcBackend struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// rpcStore is a single remote collection
type rpcStore struct {
	*rpcBackend
	collection string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (b *rpcBackend) Collection(name string) (store.IStore, error) {
	if name == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "collection name must not be empty")
	}
	return &rpcStore{rpcBackend: b, collection: name}, nil
}

func (b *rpcBackend) Ping(ctx context.Context) error {
	_, err := b.invoke(ctx, pingCollection, common.NewPingRequest())
	return err
}

func (b *rpcBackend) Close() error {
	return b.transport.Close()
}

func (s *rpcStore) FindAll(ctx context.Context) ([]store.Document, error) {
	resp, err := s.invoke(ctx, s.collection, common.NewFindAllRequest())
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, len(resp.Documents))
	for i, wire := range resp.Documents {
		if docs[i], err = wire.ToStoreDocument(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (s *rpcStore) FindOne(ctx context.Context, key string) (store.Document, bool, error) {
	resp, err := s.invoke(ctx, s.collection, common.NewFindOneRequest(key))
	if err != nil || !resp.Ok || len(resp.Documents) == 0 {
		return store.Document{}, false, err
	}
	doc, err := resp.Documents[0].ToStoreDocument()
	if err != nil {
		return store.Document{}, false, err
	}
	return doc, true, nil
}

func (s *rpcStore) InsertOne(ctx context.Context, key string, value any) error {
	b, err := encodeValue(value)
	if err != nil {
		return err
	}
	_, err = s.invoke(ctx, s.collection, common.NewInsertOneRequest(key, b))
	return err
}

func (s *rpcStore) UpdateOne(ctx context.Context, key string, value any) (bool, error) {
	b, err := encodeValue(value)
	if err != nil {
		return false, err
	}
	resp, err := s.invoke(ctx, s.collection, common.NewUpdateOneRequest(key, b))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *rpcStore) DeleteOne(ctx context.Context, key string) (bool, error) {
	resp, err := s.invoke(ctx, s.collection, common.NewDeleteOneRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *rpcStore) DeleteMany(ctx context.Context) (int, error) {
	resp, err := s.invoke(ctx, s.collection, common.NewDeleteManyRequest())
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (b *rpcBackend) invoke(ctx context.Context, collection string, req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(ctx, collection, req, b.transport, b.serializer)
}

func encodeValue(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	return b, nil
}
