package store

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// HandlerFactory creates the Handler a store runs its transitions with.
// Replicated stores create one handler per state machine.
type HandlerFactory func() Handler

// KV is the ordered key-value view a Handler works against.
// Writes to a KV become visible to later reads through the same view immediately, but are
// only committed to the database if the whole transition succeeds.
type KV interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// Delete removes a key–value pair. Deleting a missing key is a no-op.
	Delete(key string) (err error)
	// Range calls fn for every entry with start <= key < end in ascending key order.
	// An empty end means the scan is unbounded above.
	Range(start, end string, fn db.RangeFunc) (err error)
}

// Handler is the state transition logic plugged into a store.
// A store guarantees that calls to Apply are serialized and that the writes of a failed
// Apply are discarded. Lookup only gets a read-only view.
type Handler interface {
	// Apply executes one command against kv and returns the encoded result.
	Apply(kv KV, cmd []byte) (result []byte, err error)
	// Lookup answers one query against kv and returns the encoded result.
	Lookup(kv KV, query []byte) (result []byte, err error)
}

// IStore is the generic interface of a store hosting a Handler.
// Implementations return *Error values: RetCRejected if the handler refused the request,
// any other code if the store itself failed.
type IStore interface {
	// Apply runs cmd as one atomic, serialized transition.
	Apply(cmd []byte) (result []byte, err error)
	// Lookup answers a read-only query. Lookups may run concurrently with each other.
	Lookup(query []byte) (result []byte, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Rejected wraps an error returned by a Handler. Errors that already are a *Error keep
// their code, everything else becomes RetCRejected with the error text as message.
func Rejected(err error) *Error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return NewError(RetCRejected, err.Error())
}

// ApplyHandler runs h.Apply and turns a panic of the handler into a RetCInternalError.
// The caller discards the batch on any error, so a panicking transition writes nothing
// and the host keeps serving.
func ApplyHandler(h Handler, kv KV, cmd []byte) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = NewError(RetCInternalError, fmt.Sprintf("transition panicked: %v", r))
		}
	}()
	return h.Apply(kv, cmd)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCRejected                            // 4: The handler rejected the command, nothing was written.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}
