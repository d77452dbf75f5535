package dstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/lib/store/dstore/internal"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// backendImpl is a store.IBackend whose collections all live in one raft shard.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type backendImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// storeImpl is a single collection of a backendImpl.
type storeImpl struct {
	b    *backendImpl
	name string
}

// NewDistributedBackend creates a new distributed backend which uses raft consensus to ensure strict linearizability
// across multiple nodes. The shard must have been started on nh with the factory returned by CreateStateMachineFactory.
// The backend takes ownership of nh and closes it on Close.
func NewDistributedBackend(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IBackend {
	return &backendImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the number of documents affected by the command.
func (b *backendImpl) write(ctx context.Context, cmd internal.Command) (uint64, error) {
	for i := 0; i < retries; i++ {
		proposeCtx, cancel := context.WithTimeout(ctx, b.timeout)
		res, err := b.nh.SyncPropose(proposeCtx, b.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(b.timeout / 10)
			continue
		}

		if err != nil {
			return 0, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return 0, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		if len(res.Data) != 8 {
			return 0, store.NewError(store.RetCInternalError, "malformed command result")
		}
		return binary.BigEndian.Uint64(res.Data), nil
	}
	return 0, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) to query the state machine.
// If the read operation fails due to a system busy error, the function retries up to 5 times.
func read[R any](ctx context.Context, b *backendImpl, q internal.Query) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		readCtx, cancel := context.WithTimeout(ctx, b.timeout)
		res, err := b.nh.SyncRead(readCtx, b.shardID, q)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(b.timeout / 10)
			continue
		}

		if err != nil {
			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return zero, storeErr
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Backend Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (b *backendImpl) Collection(name string) (store.IStore, error) {
	return &storeImpl{b: b, name: name}, nil
}

func (b *backendImpl) Ping(ctx context.Context) error {
	_, err := read[internal.QueryResult](ctx, b, internal.Query{Type: internal.QueryTPing})
	return err
}

func (b *backendImpl) Close() error {
	b.nh.Close()
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) FindAll(ctx context.Context) ([]store.Document, error) {
	res, err := read[internal.QueryResult](ctx, s.b, internal.Query{
		Type:       internal.QueryTFindAll,
		Collection: s.name,
	})
	if err != nil {
		return nil, err
	}
	if res.Documents == nil {
		return []store.Document{}, nil
	}
	return res.Documents, nil
}

func (s *storeImpl) FindOne(ctx context.Context, key string) (store.Document, bool, error) {
	res, err := read[internal.QueryResult](ctx, s.b, internal.Query{
		Type:       internal.QueryTFindOne,
		Collection: s.name,
		Key:        key,
	})
	if err != nil || !res.Found || len(res.Documents) == 0 {
		return store.Document{}, false, err
	}
	return res.Documents[0], true, nil
}

func (s *storeImpl) InsertOne(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("could not encode value: %v", err))
	}
	_, err = s.b.write(ctx, internal.Command{
		Type:       internal.CommandTInsert,
		Collection: s.name,
		Key:        key,
		ID:         uuid.NewString(),
		Value:      encoded,
	})
	return err
}

func (s *storeImpl) UpdateOne(ctx context.Context, key string, value any) (bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("could not encode value: %v", err))
	}
	n, err := s.b.write(ctx, internal.Command{
		Type:       internal.CommandTUpdate,
		Collection: s.name,
		Key:        key,
		Value:      encoded,
	})
	return n > 0, err
}

func (s *storeImpl) DeleteOne(ctx context.Context, key string) (bool, error) {
	n, err := s.b.write(ctx, internal.Command{
		Type:       internal.CommandTDelete,
		Collection: s.name,
		Key:        key,
	})
	return n > 0, err
}

func (s *storeImpl) DeleteMany(ctx context.Context) (int, error) {
	n, err := s.b.write(ctx, internal.Command{
		Type:       internal.CommandTDeleteMany,
		Collection: s.name,
	})
	return int(n), err
}
