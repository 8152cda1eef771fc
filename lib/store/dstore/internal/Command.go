package internal

import (
	"fmt"
	"github.com/google/uuid"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTApply CommandType = iota // Run the payload as one transition of the handler.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTApply:
		return "Apply"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// headerSize is the size of the fixed command header (type + request id)
const headerSize = 1 + 16

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type      CommandType
	RequestID uuid.UUID // Correlates the log entry with the proposing client in logs
	Payload   []byte    // Opaque to the state machine, decoded by the handler
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Payload)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 16 bytes for the request id,
// N bytes for the payload (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	copy(result[1:headerSize], command.RequestID[:])
	copy(result[headerSize:], command.Payload)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command: %d bytes", len(data))
	}

	command.Type = CommandType(data[0])
	copy(command.RequestID[:], data[1:headerSize])

	// Copy the payload, the raft entry buffer may be reused by the caller
	if len(data) > headerSize {
		command.Payload = make([]byte, len(data)-headerSize)
		copy(command.Payload, data[headerSize:])
	} else {
		command.Payload = nil
	}

	return nil
}
