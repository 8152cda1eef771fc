// Package lstore implements a local, single-node host for a store.Handler based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB implementation.
//
// Implementation Details:
//
//   - Serialization: Apply holds the write lock of a sync.RWMutex for the whole
//     transition, Lookup holds the read lock. Lookups therefore run concurrently with
//     each other but never observe a transition halfway.
//
//   - Atomicity: The handler works on a store.Batch. Its writes are committed with a
//     single db.KVDB.Apply after the handler returned successfully, a rejected command
//     leaves the database untouched.
//
//   - Write Index Management: Every committed transition gets the next write index. The
//     counter starts at the index stored in the database, so a persistent engine
//     (leveldb) continues where it stopped.
//
//   - Feature Detection: The store checks that the underlying engine supports atomic
//     batches, point reads and range scans before running a transition.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory, poll.NewHandler(poll.DefaultApi()))
//
//	result, err := s.Apply(cmd)
//
// For distributed scenarios requiring consensus across multiple nodes, use the dstore
// package instead, which hosts the same handlers on a RAFT state machine.
package lstore
