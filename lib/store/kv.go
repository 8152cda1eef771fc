package store

import (
	"github.com/ValentinKolb/dPoll/lib/db"
	"sort"
)

// --------------------------------------------------------------------------
// Batch
// --------------------------------------------------------------------------

// Batch is a KV that buffers all writes in memory on top of a database.
// Reads see the buffered writes first. Nothing reaches the database until the owner
// commits Ops() with db.KVDB.Apply, so discarding a Batch discards the transition.
//
// Thread-safety: a Batch belongs to a single transition and is not safe for concurrent use.
type Batch struct {
	db      db.KVDB
	ops     []db.Op
	pending map[string]int // key -> index of the latest op for key in ops
}

// NewBatch creates an empty batch reading from database
func NewBatch(database db.KVDB) *Batch {
	return &Batch{
		db:      database,
		pending: make(map[string]int),
	}
}

func (b *Batch) Get(key string) ([]byte, bool, error) {
	if i, ok := b.pending[key]; ok {
		op := b.ops[i]
		if op.Delete {
			return nil, false, nil
		}
		value := make([]byte, len(op.Value))
		copy(value, op.Value)
		return value, true, nil
	}
	value, ok := b.db.Get(key)
	return value, ok, nil
}

func (b *Batch) Set(key string, value []byte) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	b.pending[key] = len(b.ops)
	b.ops = append(b.ops, db.Op{Key: key, Value: valueCopy})
	return nil
}

func (b *Batch) Delete(key string) error {
	b.pending[key] = len(b.ops)
	b.ops = append(b.ops, db.Op{Key: key, Delete: true})
	return nil
}

// Range merges the buffered writes into the range scan of the database
func (b *Batch) Range(start, end string, fn db.RangeFunc) error {
	if end != "" && end <= start {
		return nil
	}

	// buffered keys inside [start, end) in ascending order
	keys := make([]string, 0, len(b.pending))
	for key := range b.pending {
		if key >= start && (end == "" || key < end) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	next := 0
	stopped := false

	// emit calls fn for a buffered key unless it was deleted
	emit := func(key string) {
		op := b.ops[b.pending[key]]
		if !op.Delete && !fn(key, op.Value) {
			stopped = true
		}
	}

	b.db.Range(start, end, func(key string, value []byte) bool {
		for next < len(keys) && keys[next] < key && !stopped {
			emit(keys[next])
			next++
		}
		if stopped {
			return false
		}
		if next < len(keys) && keys[next] == key {
			emit(key)
			next++
			return !stopped
		}
		if !fn(key, value) {
			stopped = true
		}
		return !stopped
	})

	for next < len(keys) && !stopped {
		emit(keys[next])
		next++
	}
	return nil
}

// Ops returns the buffered writes in the order they were made
func (b *Batch) Ops() []db.Op {
	return b.ops
}

// Len returns the number of buffered writes
func (b *Batch) Len() int {
	return len(b.ops)
}

// --------------------------------------------------------------------------
// Read-Only View
// --------------------------------------------------------------------------

type readOnlyImpl struct {
	db db.KVDB
}

// NewReadOnly returns a KV that reads from database and rejects all writes
func NewReadOnly(database db.KVDB) KV {
	return &readOnlyImpl{db: database}
}

func (r *readOnlyImpl) Get(key string) ([]byte, bool, error) {
	value, ok := r.db.Get(key)
	return value, ok, nil
}

func (r *readOnlyImpl) Set(string, []byte) error {
	return NewError(RetCInvalidOperation, "write to a read-only view")
}

func (r *readOnlyImpl) Delete(string) error {
	return NewError(RetCInvalidOperation, "write to a read-only view")
}

func (r *readOnlyImpl) Range(start, end string, fn db.RangeFunc) error {
	r.db.Range(start, end, fn)
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// PrefixRange returns the range [start, end) of all keys starting with prefix.
// An empty end means there is no upper bound (prefix is empty or only 0xff bytes).
func PrefixRange(prefix string) (start, end string) {
	limit := []byte(prefix)
	for i := len(limit) - 1; i >= 0; i-- {
		if limit[i] < 0xff {
			limit[i]++
			return prefix, string(limit[:i+1])
		}
	}
	return prefix, ""
}
