package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dotKV/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: FindOne, InsertOne, UpdateOne, DeleteOne
	Value []byte `json:"value,omitempty"` // JSON encoded value, used for: InsertOne, UpdateOne (requests)

	// Response only fields
	Documents []Document `json:"documents,omitempty"` // Used for: FindAll, FindOne responses
	Ok        bool       `json:"ok,omitempty"`        // Used for: FindOne, UpdateOne, DeleteOne responses
	Count     uint64     `json:"count,omitempty"`     // Used for: DeleteMany responses
	Code      uint8      `json:"code,omitempty"`      // store.RetCode of a failed operation
	Err       string     `json:"err,omitempty"`       // Empty if no error, otherwise contains the error message
}

// Document is the wire form of a store.Document. The value is JSON encoded so that
// every serializer can carry it without knowing the concrete value types.
type Document struct {
	ID       string `json:"_id"`
	Key      string `json:"__KEY"`
	Value    []byte `json:"__VALUE"`
	Revision uint64 `json:"__v"`
}

// FromStoreDocument converts a store.Document to its wire form.
func FromStoreDocument(doc store.Document) (Document, error) {
	value, err := json.Marshal(doc.Value)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: doc.ID, Key: doc.Key, Value: value, Revision: doc.Revision}, nil
}

// ToStoreDocument converts the wire form back to a store.Document.
func (d Document) ToStoreDocument() (store.Document, error) {
	var value any
	if len(d.Value) > 0 {
		if err := json.Unmarshal(d.Value, &value); err != nil {
			return store.Document{}, err
		}
	}
	return store.Document{ID: d.ID, Key: d.Key, Value: value, Revision: d.Revision}, nil
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewFindAllRequest creates a new FindAll request
func NewFindAllRequest() *Message {
	return &Message{MsgType: MsgTFindAll}
}

// NewFindAllResponse creates a new FindAll response
func NewFindAllResponse(docs []Document, err error) *Message {
	return withErr(&Message{
		MsgType:   MsgTFindAll,
		Documents: docs,
	}, err)
}

// NewFindOneRequest creates a new FindOne request
func NewFindOneRequest(key string) *Message {
	return &Message{
		MsgType: MsgTFindOne,
		Key:     key,
	}
}

// NewFindOneResponse creates a new FindOne response
func NewFindOneResponse(doc *Document, found bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTFindOne,
		Ok:      found,
	}
	if doc != nil {
		msg.Documents = []Document{*doc}
	}
	return withErr(msg, err)
}

// NewInsertOneRequest creates a new InsertOne request
func NewInsertOneRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTInsertOne,
		Key:     key,
		Value:   value,
	}
}

// NewInsertOneResponse creates a new InsertOne response
func NewInsertOneResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTInsertOne}, err)
}

// NewUpdateOneRequest creates a new UpdateOne request
func NewUpdateOneRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTUpdateOne,
		Key:     key,
		Value:   value,
	}
}

// NewUpdateOneResponse creates a new UpdateOne response
func NewUpdateOneResponse(matched bool, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTUpdateOne,
		Ok:      matched,
	}, err)
}

// NewDeleteOneRequest creates a new DeleteOne request
func NewDeleteOneRequest(key string) *Message {
	return &Message{
		MsgType: MsgTDeleteOne,
		Key:     key,
	}
}

// NewDeleteOneResponse creates a new DeleteOne response
func NewDeleteOneResponse(deleted bool, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTDeleteOne,
		Ok:      deleted,
	}, err)
}

// NewDeleteManyRequest creates a new DeleteMany request
func NewDeleteManyRequest() *Message {
	return &Message{MsgType: MsgTDeleteMany}
}

// NewDeleteManyResponse creates a new DeleteMany response
func NewDeleteManyResponse(count int, err error) *Message {
	return withErr(&Message{
		MsgType: MsgTDeleteMany,
		Count:   uint64(count),
	}, err)
}

// NewPingRequest creates a new Ping request
func NewPingRequest() *Message {
	return &Message{MsgType: MsgTPing}
}

// NewPingResponse creates a new Ping response
func NewPingResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTPing}, err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// withErr stores err in the message. The code of a *store.Error is kept so the client
// can restore it.
func withErr(msg *Message, err error) *Message {
	if err == nil {
		return msg
	}
	msg.Err = err.Error()
	msg.Code = uint8(store.RetCInternalError)
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		msg.Code = uint8(storeErr.Code)
		msg.Err = storeErr.Msg
	}
	return msg
}

// AsError returns the error carried by the message as a *store.Error, nil if there is none.
func (m *Message) AsError() error {
	if m.MsgType != MsgTError && m.Err == "" {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTFindAll:
		return "findAll"
	case MsgTFindOne:
		return "findOne"
	case MsgTInsertOne:
		return "insertOne"
	case MsgTUpdateOne:
		return "updateOne"
	case MsgTDeleteOne:
		return "deleteOne"
	case MsgTDeleteMany:
		return "deleteMany"
	case MsgTPing:
		return "ping"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "findAll":
		*t = MsgTFindAll
	case "findOne":
		*t = MsgTFindOne
	case "insertOne":
		*t = MsgTInsertOne
	case "updateOne":
		*t = MsgTUpdateOne
	case "deleteOne":
		*t = MsgTDeleteOne
	case "deleteMany":
		*t = MsgTDeleteMany
	case "ping":
		*t = MsgTPing
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTFindAll    // Read all documents of a collection
	MsgTFindOne    // Read one document by key
	MsgTInsertOne  // Insert a new document
	MsgTUpdateOne  // Replace the value of a document
	MsgTDeleteOne  // Delete one document by key
	MsgTDeleteMany // Delete all documents of a collection

	// IBackend operations

	MsgTPing // Check that the backend is reachable
)
