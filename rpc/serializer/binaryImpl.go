package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	msgType u8 | flags u8 | [payload] | [code u64] | [err] | [meta]
//
// Byte fields are written as u32 length + data, only if their flag is set.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasPayload byte = 1 << 0
	hasCode    byte = 1 << 1
	hasErr     byte = 1 << 2
	hasMeta    byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	out := make([]byte, 2, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)

	var flags byte
	if msg.Payload != nil {
		flags |= hasPayload
		out = appendBytes(out, msg.Payload)
	}
	if msg.Code != store.RetCSuccess {
		flags |= hasCode
		out = binary.BigEndian.AppendUint64(out, uint64(msg.Code))
	}
	if msg.Err != "" {
		flags |= hasErr
		out = appendBytes(out, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		out = appendBytes(out, msg.Meta)
	}

	out[1] = flags
	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	r := reader{data: data, pos: 2}
	flags := data[1]

	*msg = common.Message{MsgType: common.MessageType(data[0])}

	if flags&hasPayload != 0 {
		msg.Payload = r.bytes("payload")
	}
	if flags&hasCode != 0 {
		msg.Code = store.RetCode(r.uint64("code"))
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("err"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}
	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := 2 // MsgType + flags
	if msg.Payload != nil {
		size += 4 + len(msg.Payload)
	}
	if msg.Code != store.RetCSuccess {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

func appendBytes(out, data []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	return append(out, data...)
}

// reader reads fields until the first error, later reads return zero values
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *reader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// bytes returns a copy, so the message does not alias the input buffer.
// A present but empty field is returned as an empty, non nil slice.
func (r *reader) bytes(field string) []byte {
	if !r.need(4, field+" length") {
		return nil
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	if !r.need(n, field+" data") {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v
}
