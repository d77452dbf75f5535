package internal

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTInsert     CommandType = iota // Insert a new document.
	CommandTUpdate                        // Replace the value of an existing document.
	CommandTDelete                        // Delete a document.
	CommandTDeleteMany                    // Delete every document of a collection.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTInsert:
		return "Insert"
	case CommandTUpdate:
		return "Update"
	case CommandTDelete:
		return "Delete"
	case CommandTDeleteMany:
		return "DeleteMany"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type       CommandType
	Collection string
	Key        string
	ID         string // document id chosen by the proposer (insert only)
	Value      []byte // JSON encoded value (insert and update only)
}

// headerSize is the fixed part of a serialized command: type + three length fields.
const headerSize = 1 + 2 + 4 + 1

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Collection) + len(command.Key) + len(command.ID) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 2 bytes for collection length (big endian),
// 4 bytes for key length (big endian),
// 1 byte for id length,
// N bytes for collection, key and id data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint16(result[1:3], uint16(len(command.Collection)))
	binary.BigEndian.PutUint32(result[3:7], uint32(len(command.Key)))
	result[7] = byte(len(command.ID))

	offset := headerSize
	offset += copy(result[offset:], command.Collection)
	offset += copy(result[offset:], command.Key)
	offset += copy(result[offset:], command.ID)
	copy(result[offset:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	collLen := int(binary.BigEndian.Uint16(data[1:3]))
	keyLen := int(binary.BigEndian.Uint32(data[3:7]))
	idLen := int(data[7])

	if len(data) < headerSize+collLen+keyLen+idLen {
		return fmt.Errorf("data too short for collection, key and id of length %d", collLen+keyLen+idLen)
	}

	offset := headerSize
	command.Collection = string(data[offset : offset+collLen])
	offset += collLen
	command.Key = string(data[offset : offset+keyLen])
	offset += keyLen
	command.ID = string(data[offset : offset+idLen])
	offset += idLen

	if len(data) > offset {
		command.Value = make([]byte, len(data)-offset)
		copy(command.Value, data[offset:])
	} else {
		command.Value = nil
	}

	return nil
}
