package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dotKV/lib/store"
	"github.com/ValentinKolb/dotKV/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, backend store.IBackend, coll store.IStore) *common.Message {
	// Check for nil store
	if backend == nil || coll == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTFindAll:
		docs, err := coll.FindAll(ctx)
		if err != nil {
			return common.NewFindAllResponse(nil, err)
		}
		wire := make([]common.Document, len(docs))
		for i, doc := range docs {
			if wire[i], err = common.FromStoreDocument(doc); err != nil {
				return common.NewFindAllResponse(nil, err)
			}
		}
		return common.NewFindAllResponse(wire, nil)
	case common.MsgTFindOne:
		doc, found, err := coll.FindOne(ctx, req.Key)
		if err != nil || !found {
			return common.NewFindOneResponse(nil, false, err)
		}
		wire, err := common.FromStoreDocument(doc)
		if err != nil {
			return common.NewFindOneResponse(nil, false, err)
		}
		return common.NewFindOneResponse(&wire, true, nil)
	case common.MsgTInsertOne:
		value, err := decodeValue(req.Value)
		if err != nil {
			return common.NewInsertOneResponse(err)
		}
		return common.NewInsertOneResponse(coll.InsertOne(ctx, req.Key, value))
	case common.MsgTUpdateOne:
		value, err := decodeValue(req.Value)
		if err != nil {
			return common.NewUpdateOneResponse(false, err)
		}
		matched, err := coll.UpdateOne(ctx, req.Key, value)
		return common.NewUpdateOneResponse(matched, err)
	case common.MsgTDeleteOne:
		deleted, err := coll.DeleteOne(ctx, req.Key)
		return common.NewDeleteOneResponse(deleted, err)
	case common.MsgTDeleteMany:
		count, err := coll.DeleteMany(ctx)
		return common.NewDeleteManyResponse(count, err)
	case common.MsgTPing:
		return common.NewPingResponse(backend.Ping(ctx))
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// decodeValue decodes the JSON encoded value of a request
func decodeValue(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(b, &value); err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid value: %v", err))
	}
	return value, nil
}
