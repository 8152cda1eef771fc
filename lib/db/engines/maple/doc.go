// Package maple implements an in-memory ordered key-value database (KVDB) on top of
// a copy-on-write btree (github.com/google/btree). It is the default engine behind
// every shard of the poll service when no persistence is required.
//
// Key Components:
//
//   - mapleImpl: The central structure implementing db.KVDB. A single RWMutex guards the
//     tree. Writers (Set, Delete, Apply) take the write lock, point reads (Get, Has) take
//     the read lock. Apply writes a whole batch under one lock acquisition, so a poll
//     transition that touches a poll record and a ballot record is never observed halfway.
//
//   - Range scans: Range first clones the tree (O(1), copy-on-write) and then iterates the
//     clone without holding any lock. Callbacks may therefore write to the database while a
//     scan is running, the scan always sees the state at the moment it started.
//
//   - Write Index: A logical timestamp that orders operations in the database. The index is
//     monotonically increased with CompareAndSwap. The database does not generate write
//     indices itself: a local store uses a counter, a replicated store uses the RAFT log index.
//
//   - Persistence Format: The database uses a compact binary format (little endian):
//     1. Magic number "MAPLEDB\x00" to identify the file format
//     2. Version number (currently 4)
//     3. Write index at the time of the snapshot
//     4. Number of entries
//     5. For each entry in key order: key length (u32), key, value length (u32), value
//     Save serializes a clone of the tree and therefore produces a consistent cut even
//     under concurrent writes. Load builds a fresh tree and swaps it in atomically.
//
//   - Metrics: GetInfo samples entry sizes with a go-metrics histogram (see util.SizeSampler)
//     and extrapolates the total size from the sample.
package maple
