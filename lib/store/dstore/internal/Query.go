package internal

import "github.com/ValentinKolb/dPoll/lib/store"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTLookup    QueryType = iota // Run the payload as a read-only query of the handler.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTLookup:
		return "Lookup"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type    QueryType // The type of Query to perform.
	Payload []byte    // The query for the handler (empty for QueryTGetDBInfo).
}

// QueryResult is the result of a QueryTLookup operation.
// A rejected query is a regular result (Code != RetCSuccess), so it is never confused
// with an error of the consensus layer.
type QueryResult struct {
	Code store.RetCode
	Data []byte // The encoded result on success
	Msg  string // The error message on failure
}
