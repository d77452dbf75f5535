package dstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/lib/store/dstore/internal"
	"github.com/ValentinKolb/dotKV/lib/store/memstore"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// DocumentStateMachine is a state machine implementation for Dragonboat RAFT.
// It keeps all collections of a shard in an in-memory backend.
type DocumentStateMachine struct {
	replicaID uint64
	shardID   uint64
	backend   *memstore.Backend
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &DocumentStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			backend:   memstore.New(),
		}
	}
}

// Lookup handles read-only queries.
func (fsm *DocumentStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	ctx := context.Background()
	switch q.Type {
	case internal.QueryTPing:
		return internal.QueryResult{Found: true}, nil
	case internal.QueryTFindAll:
		coll, err := fsm.backend.Collection(q.Collection)
		if err != nil {
			return nil, err
		}
		docs, err := coll.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		return internal.QueryResult{Found: len(docs) > 0, Documents: docs}, nil
	case internal.QueryTFindOne:
		coll, err := fsm.backend.Collection(q.Collection)
		if err != nil {
			return nil, err
		}
		doc, found, err := coll.FindOne(ctx, q.Key)
		if err != nil || !found {
			return internal.QueryResult{}, err
		}
		return internal.QueryResult{Found: true, Documents: []store.Document{doc}}, nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands. All write operations are serialized into []byte and
// are accessible via the entries struct. On success, Result.Data holds the number of
// affected documents as big endian uint64.
func (fsm *DocumentStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = errorResult(store.RetCInvalidOperation, "empty command ignored")
			continue
		}
		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = errorResult(store.RetCInternalError, fmt.Sprintf("failed to deserialize command: %v", err))
			continue
		}
		entries[idx].Result = fsm.apply(cmd)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single command on the backend.
func (fsm *DocumentStateMachine) apply(cmd internal.Command) sm.Result {
	ctx := context.Background()
	coll, err := fsm.backend.Collection(cmd.Collection)
	if err != nil {
		return resultFromError(err)
	}

	var count uint64
	switch cmd.Type {
	case internal.CommandTInsert, internal.CommandTUpdate:
		var value any
		if err := json.Unmarshal(cmd.Value, &value); err != nil {
			return errorResult(store.RetCInvalidOperation, fmt.Sprintf("invalid value for key %s: %v", cmd.Key, err))
		}
		if cmd.Type == internal.CommandTInsert {
			err = fsm.backend.InsertWithID(ctx, cmd.Collection, cmd.ID, cmd.Key, value)
			count = 1
		} else {
			var matched bool
			matched, err = coll.UpdateOne(ctx, cmd.Key, value)
			count = boolCount(matched)
		}
	case internal.CommandTDelete:
		var deleted bool
		deleted, err = coll.DeleteOne(ctx, cmd.Key)
		count = boolCount(deleted)
	case internal.CommandTDeleteMany:
		var n int
		n, err = coll.DeleteMany(ctx)
		count = uint64(n)
	default:
		return errorResult(store.RetCInvalidOperation, fmt.Sprintf("unknown Command operation: %s", cmd.Type))
	}
	if err != nil {
		return resultFromError(err)
	}

	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, count)
	return sm.Result{Value: uint64(store.RetCSuccess), Data: data}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *DocumentStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy snapshot of all collections to the writer
func (fsm *DocumentStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	return fsm.backend.Save(writer)
}

// RecoverFromSnapshot replaces the state with a snapshot written by SaveSnapshot.
func (fsm *DocumentStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	return fsm.backend.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *DocumentStateMachine) Close() error {
	return fsm.backend.Close()
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func errorResult(code store.RetCode, msg string) sm.Result {
	return sm.Result{Value: uint64(code), Data: []byte(msg)}
}

func resultFromError(err error) sm.Result {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return errorResult(storeErr.Code, storeErr.Msg)
	}
	return errorResult(store.RetCInternalError, err.Error())
}

func boolCount(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
