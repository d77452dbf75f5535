package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dotKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and size
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte MsgType, 1 byte flags, followed by the fields whose flag is set
// in the order of the flags below. Strings and byte slices are prefixed with their
// length (uint32, big endian).
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey       byte = 1 << 0
	hasValue     byte = 1 << 1
	hasDocuments byte = 1 << 2
	hasOk        byte = 1 << 3
	hasCount     byte = 1 << 4
	hasCode      byte = 1 << 5
	hasErr       byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	out := make([]byte, 2, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)

	var flags byte
	if msg.Key != "" {
		flags |= hasKey
		out = appendBytes(out, []byte(msg.Key))
	}
	if msg.Value != nil {
		flags |= hasValue
		out = appendBytes(out, msg.Value)
	}
	if len(msg.Documents) > 0 {
		flags |= hasDocuments
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Documents)))
		for _, doc := range msg.Documents {
			out = appendBytes(out, []byte(doc.ID))
			out = appendBytes(out, []byte(doc.Key))
			out = appendBytes(out, doc.Value)
			out = binary.BigEndian.AppendUint64(out, doc.Revision)
		}
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Count > 0 {
		flags |= hasCount
		out = binary.BigEndian.AppendUint64(out, msg.Count)
	}
	if msg.Code != 0 {
		flags |= hasCode
		out = append(out, msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		out = appendBytes(out, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	out[1] = flags
	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}
	if common.MessageType(data[0]) > common.MsgTPing {
		return fmt.Errorf("unknown message type %d", data[0])
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := &binaryReader{data: data, pos: 2}

	if flags&hasKey != 0 {
		msg.Key = string(r.readBytes("key"))
	}
	if flags&hasValue != 0 {
		msg.Value = r.readBytes("value")
	}
	if flags&hasDocuments != 0 {
		n := r.readUint32("document count")
		// every document needs at least its three length prefixes and the revision
		if r.err == nil && uint64(n)*20 > uint64(len(data)-r.pos) {
			return fmt.Errorf("data too short for %d documents", n)
		}
		msg.Documents = make([]common.Document, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Documents = append(msg.Documents, common.Document{
				ID:       string(r.readBytes("document id")),
				Key:      string(r.readBytes("document key")),
				Value:    r.readBytes("document value"),
				Revision: r.readUint64("document revision"),
			})
		}
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCount != 0 {
		msg.Count = r.readUint64("count")
	}
	if flags&hasCode != 0 {
		msg.Code = r.readByte("code")
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.readBytes("error"))
	}

	if r.err == nil && r.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-r.pos)
	}
	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if len(msg.Documents) > 0 {
		size += 4
		for _, doc := range msg.Documents {
			size += 12 + len(doc.ID) + len(doc.Key) + len(doc.Value) + 8
		}
	}
	if msg.Count > 0 {
		size += 8
	}
	if msg.Code != 0 {
		size++
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	return size
}

// appendBytes appends b prefixed with its length
func appendBytes(out, b []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

// binaryReader reads length prefixed fields. After the first failure all reads
// return zero values and err holds the failure.
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *binaryReader) readByte(field string) byte {
	if !r.need(1, field) {
		return 0
	}
	r.pos++
	return r.data[r.pos-1]
}

func (r *binaryReader) readUint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	r.pos += 4
	return binary.BigEndian.Uint32(r.data[r.pos-4 : r.pos])
}

func (r *binaryReader) readUint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	r.pos += 8
	return binary.BigEndian.Uint64(r.data[r.pos-8 : r.pos])
}

// readBytes returns a copy of a length prefixed field; an empty field yields a non-nil empty slice
func (r *binaryReader) readBytes(field string) []byte {
	n := int(r.readUint32(field + " length"))
	if !r.need(n, field) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out
}
