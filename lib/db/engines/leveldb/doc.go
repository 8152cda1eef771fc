// Package leveldb implements a persistent ordered key-value database (KVDB) on top of
// goleveldb (github.com/syndtr/goleveldb).
//
// User keys are stored below the prefix "d:" and the write index is stored as JSON below
// "m:meta". Every Apply writes its ops and the new write index in one leveldb batch, so
// after a crash the stored index always belongs to the stored data. When a replicated
// store reopens a shard, it reads the index back with WriteIdx and the RAFT log only
// replays entries above it.
//
// Range scans and Save use leveldb snapshots, so they see a consistent state while
// writers continue. Load replaces all user keys in one batch.
//
// NewMemLevelDB returns the same engine on memory storage, which is used by the tests and
// by shards that should behave like leveldb without touching the disk.
package leveldb
