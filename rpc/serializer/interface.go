package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"strings"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into the Message msg points to
	Deserialize(b []byte, msg *common.Message) error
}

// ByName returns the serializer for "binary", "json" or "gob"
func ByName(name string) (IRPCSerializer, error) {
	switch strings.ToLower(name) {
	case "binary":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q, must be binary, json or gob", name)
	}
}
