// Package store hosts state transition logic on top of the ordered db.KVDB engines.
// It serves as the layer between a Handler (the poll contract, see lib/poll) and the
// database, and guarantees that every command runs as one atomic, serialized transition.
//
// Key Components:
//
//   - KV Interface: The ordered key-value view a Handler reads and writes. It supports
//     point Get/Set/Delete and an ordered Range scan.
//
//   - Batch: A KV that buffers all writes of one transition in memory. Reads through the
//     batch see its own writes, Range merges them into the database scan. The store
//     commits Ops() with a single db.KVDB.Apply once the handler succeeded, or drops the
//     batch if it failed. That is how a rejected command leaves no trace in the database.
//
//   - Handler Interface: Apply (commands) and Lookup (queries) on raw bytes. Hosts do not
//     know anything about the encoding of commands or results.
//
//   - IStore Interface: The host abstraction. All implementations share this interface, so
//     the same Handler can run in-process, replicated through RAFT or behind the RPC client.
//
//   - Error System: *Error values with a RetCode. RetCRejected marks a command the handler
//     refused (nothing was written), all other codes mark failures of the store itself.
//
// Implementations:
//
//   - Local Store (lstore): serializes transitions with a mutex over a single db.KVDB.
//     Available in the "github.com/ValentinKolb/dPoll/lib/store/lstore" package.
//
//   - Distributed Store (dstore): a Dragonboat state machine that applies transitions in
//     RAFT log order on every replica, plus a client implementing IStore.
//     Available in the "github.com/ValentinKolb/dPoll/lib/store/dstore" package.
package store
