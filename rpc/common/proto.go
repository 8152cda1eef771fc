package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
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
	Payload []byte `json:"payload,omitempty"` // Used for: Apply, Lookup (request and response), DBInfo (response)

	// Response only fields
	Code store.RetCode `json:"code,omitempty"` // Return code of the store, only set together with Err
	Err  string        `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// AsError returns the error carried by a response message, or nil.
// The store code survives the round trip, so rejections stay rejections.
func (m *Message) AsError() error {
	if m.MsgType == MsgTError && m.Err == "" {
		return store.NewError(store.RetCInternalError, "unknown error")
	}
	if m.Err == "" {
		return nil
	}
	code := m.Code
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// setErr copies err into the message, keeping the code of a *store.Error.
// Other errors are failures of the server itself.
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		storeErr = store.NewError(store.RetCInternalError, err.Error())
	}
	m.Code = storeErr.Code
	m.Err = storeErr.Msg
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewApplyRequest creates a new Apply request carrying an encoded command
func NewApplyRequest(cmd []byte) *Message {
	return &Message{
		MsgType: MsgTApply,
		Payload: cmd,
	}
}

// NewApplyResponse creates a new Apply response
func NewApplyResponse(result []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTApply,
		Payload: result,
	}
	return msg.setErr(err)
}

// NewLookupRequest creates a new Lookup request carrying an encoded query
func NewLookupRequest(query []byte) *Message {
	return &Message{
		MsgType: MsgTLookup,
		Payload: query,
	}
}

// NewLookupResponse creates a new Lookup response
func NewLookupResponse(result []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTLookup,
		Payload: result,
	}
	return msg.setErr(err)
}

// NewDBInfoRequest creates a new DBInfo request
func NewDBInfoRequest() *Message {
	return &Message{
		MsgType: MsgTDBInfo,
	}
}

// NewDBInfoResponse creates a new DBInfo response, the info is encoded as JSON
func NewDBInfoResponse(info []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTDBInfo,
		Payload: info,
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    store.RetCInternalError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTApply:
		return "apply"
	case MsgTLookup:
		return "lookup"
	case MsgTDBInfo:
		return "dbinfo"
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
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "apply":
		*t = MsgTApply
	case "lookup":
		*t = MsgTLookup
	case "dbinfo":
		*t = MsgTDBInfo
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

	MsgTApply  // Run a command as one transition
	MsgTLookup // Answer a read-only query
	MsgTDBInfo // Metadata of the database of a shard
)
