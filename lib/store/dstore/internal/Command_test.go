package internal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	cmd := Command{
		Type:       CommandTInsert,
		Collection: "users",
		Key:        "testkey",
		ID:         "id-1",
		Value:      []byte(`{"a":1}`),
	}
	expected := 1 + 2 + 4 + 1 + 5 + 7 + 4 + 7
	if size := cmd.SizeBytes(); size != expected {
		t.Errorf("SizeBytes() = %v, want %v", size, expected)
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name: "Insert with value",
			command: Command{
				Type:       CommandTInsert,
				Collection: "users",
				Key:        "alice",
				ID:         "0b7e3c1e-5f7a-4a47-9c55-1c1d1b0f8f11",
				Value:      []byte(`{"age":30}`),
			},
		},
		{
			name: "Delete without value",
			command: Command{
				Type:       CommandTDelete,
				Collection: "users",
				Key:        "alice",
			},
		},
		{
			name: "DeleteMany without key",
			command: Command{
				Type:       CommandTDeleteMany,
				Collection: "users",
			},
		},
		{
			name: "Unicode key",
			command: Command{
				Type:       CommandTUpdate,
				Collection: "sammlung",
				Key:        "你好世界",
				Value:      []byte(`"unicode"`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if got.Type != tt.command.Type || got.Collection != tt.command.Collection ||
				got.Key != tt.command.Key || got.ID != tt.command.ID {
				t.Errorf("Command mismatch: got %+v, want %+v", got, tt.command)
			}
			if tt.command.Value == nil {
				if len(got.Value) != 0 {
					t.Errorf("Value should be nil or empty, got %v", got.Value)
				}
			} else if !bytes.Equal(got.Value, tt.command.Value) {
				t.Errorf("Value mismatch: got %s, want %s", got.Value, tt.command.Value)
			}
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tooLong := make([]byte, headerSize)
	tooLong[0] = byte(CommandTInsert)
	binary.BigEndian.PutUint32(tooLong[3:7], 1000)

	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{"Empty data", []byte{}, "data too short for command"},
		{"Data too short (less than header)", []byte{1, 2, 3}, "data too short for command"},
		{"Invalid key length", tooLong, "data too short for collection, key and id of length 1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}
