// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the wire format used to transmit commands
// and queries between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Commands are serialized and proposed to the RAFT cluster,
//     executed on the state machine of every replica, and produce results that are
//     returned to the proposing client. The payload is opaque, only the handler plugged
//     into the state machine decodes it.
//
//   - Query System: Queries are executed locally on the state machine and therefore are
//     passed as Go values and never serialized.
//
// Command Format:
//
//   - 1 byte: Command type (Apply)
//   - 16 bytes: Request id (uuid), used to correlate log lines of client and replicas
//   - N bytes: Payload (optional)
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization.
package internal
