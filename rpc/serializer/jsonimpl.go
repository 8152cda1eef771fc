package serializer

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dPoll/rpc/common"
)

// NewJSONSerializer creates a serializer producing human-readable messages, payloads are base64 encoded
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Deserialize resets msg first, fields missing in b are zero afterwards
func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	return nil
}
