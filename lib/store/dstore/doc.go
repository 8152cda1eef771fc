// Package dstore runs a store.Handler as a replicated state machine on top of the
// Dragonboat RAFT consensus library. It provides a strongly consistent implementation of
// the store.IStore interface that can operate across multiple nodes.
//
// Architecture:
//
//   - Store Client: Implements store.IStore. Apply wraps the command into an
//     internal.Command, proposes it with SyncPropose and returns the result of the
//     transition. Lookup runs the query on a replica with SyncRead.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine (HandlerStateMachine) that
//     owns a db.KVDB and a store.Handler. Every committed log entry is one transition:
//     the handler runs on a fresh store.Batch and the batch is committed with the RAFT
//     log index as write index only if the handler succeeded. A rejected entry leaves
//     the database unchanged on every replica, because every replica runs the same
//     deterministic handler on the same state.
//
//   - Communication Protocol: Defined in the internal package.
//
// Transitions:
//
//	1. The client proposes the command via SyncPropose
//	2. The leader replicates the entry to a majority of followers
//	3. Once committed, Update runs the entry on each replica
//	4. The result code (store.RetCode) and data are returned to the client
//
//	Log entries that are already contained in a persistent database (its write index is
//	at or above the entry index) are skipped. That makes replay after a restart safe for
//	transitions that are not idempotent.
//
// Read Operations:
//
//   - Linearizable Reads: Lookup uses SyncRead, so the answering replica has applied all
//     committed entries first.
//
//   - Stale Reads: GetDBInfo uses StaleRead, which may return slightly outdated
//     information but with lower latency.
//
// Error Handling and Retries:
//
//	When Dragonboat returns ErrSystemBusy, the operation is retried after a short delay,
//	up to 5 attempts. Every operation has a configurable timeout.
//
// Snapshotting and Recovery:
//
//	Snapshots are written with db.KVDB.Save and restored with db.KVDB.Load. After
//	restoring a snapshot, a replica receives all entries committed after it.
//
// Usage:
//
//	// DB and handler factory for the state machine
//	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	handlerFactory := func() store.Handler { return poll.NewHandler(poll.DefaultApi()) }
//
//	// Create and start shard (RAFT server)
//	err := nh.StartConcurrentReplica(
//		clusterMembers,
//		false,
//		dstore.CreateStateMachineFactory(dbFactory, handlerFactory),
//		shardConfig)
//
//	// Create store with appropriate timeout
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
