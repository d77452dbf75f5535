package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
)

// headerSize is the size of the fixed frame header
const headerSize = 14

// writeFrame writes a frame to w with the format:
// - 8 bytes: requestID (uint64, big endian)
// - 2 bytes: collection name length (uint16, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: collection name
// - M bytes: data payload
func writeFrame(w io.Writer, requestID uint64, collection string, data []byte) error {
	if len(collection) > math.MaxUint16 {
		return fmt.Errorf("collection name too long (%d bytes)", len(collection))
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[:8], requestID)
	binary.BigEndian.PutUint16(header[8:10], uint16(len(collection)))
	binary.BigEndian.PutUint32(header[10:14], uint32(len(data)))

	b := net.Buffers{header, []byte(collection), data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from r using the provided buffer for the payload.
// If the buffer is too small, a new buffer is allocated. The returned data
// aliases buf, the collection name is always a copy.
func readFrame(r io.Reader, buf []byte) (requestID uint64, collection string, data []byte, err error) {
	var header [headerSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, "", nil, err
	}

	requestID = binary.BigEndian.Uint64(header[:8])
	collectionLength := int(binary.BigEndian.Uint16(header[8:10]))
	contentLength := int(binary.BigEndian.Uint32(header[10:14]))

	size := collectionLength + contentLength
	if len(buf) < size {
		buf = make([]byte, size)
	}
	if _, err = io.ReadFull(r, buf[:size]); err != nil {
		return 0, "", nil, err
	}

	return requestID, string(buf[:collectionLength]), buf[collectionLength:size], nil
}
