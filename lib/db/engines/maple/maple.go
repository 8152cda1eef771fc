package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/db/util"
	"github.com/google/btree"
	"io"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum      = "MAPLEDB\x00" // File format identifier
	mapleVersion  = 4             // Database version (4 = ordered btree layout)
	defaultDegree = 32            // Default btree degree
	sampleLimit   = 1000          // Max entries inspected by GetInfo
)

// --------------------------------------------------------------------------
// Tree Item
// --------------------------------------------------------------------------

// entry is a key-value pair stored in the tree, ordered by key
type entry struct {
	key   string
	value []byte
}

// Less implements btree.Item
func (e entry) Less(than btree.Item) bool {
	return e.key < than.(entry).key
}

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory ordered database on top of a copy-on-write btree
type mapleImpl struct {
	mu        sync.RWMutex  // guards tree (writers and Clone take the write lock)
	tree      *btree.BTree  // ordered entries
	degree    int           // btree degree
	currIndex atomic.Uint64 // Current logical timestamp
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	Degree int // Degree of the btree (0 = use default)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Degree < 2 {
		opts.Degree = defaultDegree
	}

	return &mapleImpl{
		tree:   btree.New(opts.Degree),
		degree: opts.Degree,
	}
}

// snapshot returns a lazily copied tree that can be read without holding any lock.
//
// Thread-safety: This method is thread-safe. Clone mutates the copy-on-write context of
// the original tree, therefore it is called with the write lock held.
func (maple *mapleImpl) snapshot() *btree.BTree {
	maple.mu.Lock()
	defer maple.mu.Unlock()
	return maple.tree.Clone()
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key and value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIdx uint64) {
	maple.Apply([]db.Op{{Key: key, Value: value}}, writeIdx)
}

// Delete removes an entry with the specified key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIdx uint64) {
	maple.Apply([]db.Op{{Key: key, Delete: true}}, writeIdx)
}

// Apply writes all ops under one write lock, so readers never observe a partial batch.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Apply(ops []db.Op, writeIdx uint64) {
	maple.mu.Lock()
	defer maple.mu.Unlock()

	for _, op := range ops {
		if op.Delete {
			maple.tree.Delete(entry{key: op.Key})
			continue
		}

		// Copy value to prevent memory corruption
		valueCopy := make([]byte, len(op.Value))
		copy(valueCopy, op.Value)
		maple.tree.ReplaceOrInsert(entry{key: op.Key, value: valueCopy})
	}

	maple.SetWriteIdx(writeIdx)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	item := maple.tree.Get(entry{key: key})
	if item == nil {
		return nil, false
	}

	stored := item.(entry).value
	data := make([]byte, len(stored))
	copy(data, stored)
	return data, true
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	maple.mu.RLock()
	defer maple.mu.RUnlock()
	return maple.tree.Has(entry{key: key})
}

// Range iterates a snapshot of the tree, fn may therefore write to the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Range(start, end string, fn db.RangeFunc) {
	snap := maple.snapshot()

	iter := func(i btree.Item) bool {
		e := i.(entry)
		return fn(e.key, e.value)
	}

	if end == "" {
		snap.AscendGreaterOrEqual(entry{key: start}, iter)
		return
	}
	snap.AscendRange(entry{key: start}, entry{key: end}, iter)
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation, the saved state is
// the state at the moment Save was called.
func (maple *mapleImpl) Save(w io.Writer) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	snap := maple.snapshot()

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write current write index
	if err := binary.Write(bw, binary.LittleEndian, maple.WriteIdx()); err != nil {
		return err
	}

	// Write total data entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(snap.Len())); err != nil {
		return err
	}

	// Write data entries in key order
	var writeErr error
	snap.Ascend(func(i btree.Item) bool {
		e := i.(entry)
		writeErr = writeEntry(bw, e)
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// writeEntry writes a single length-prefixed key-value pair
func writeEntry(w io.Writer, e entry) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(e.key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, e.key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(e.value))); err != nil {
		return err
	}
	_, err := w.Write(e.value)
	return err
}

// Load restores a database from the reader, replacing all existing entries.
// The new tree is built first and swapped in at the end, readers never see a half loaded state.
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}

	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}

	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read write index
	var writeIdx uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}

	// Read data entries count
	var dataCount uint64
	if err := binary.Read(br, binary.LittleEndian, &dataCount); err != nil {
		return err
	}

	tree := btree.New(maple.degree)
	for i := uint64(0); i < dataCount; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		tree.ReplaceOrInsert(entry{key: string(key), value: value})
	}

	maple.mu.Lock()
	maple.tree = tree
	maple.currIndex.Store(writeIdx)
	maple.mu.Unlock()

	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	snap := maple.snapshot()

	// only sample the first entries, the estimate is extrapolated to the whole tree
	sampler := util.NewSizeSampler()
	count := 0
	snap.Ascend(func(i btree.Item) bool {
		e := i.(entry)
		sampler.Add(len(e.key), len(e.value))
		count++
		return count < sampleLimit
	})

	meta := &struct {
		CurrentWriteIndex uint64         `json:"current_write_index"`
		Degree            int            `json:"degree"`
		EntrySizes        util.SizeStats `json:"entry_sizes"`
		Info              string         `json:"info"`
	}{
		CurrentWriteIndex: maple.WriteIdx(),
		Degree:            maple.degree,
		EntrySizes:        sampler.Stats(),
		Info:              "SizeBytes is an estimate extrapolated from a sample of entries.",
	}

	return db.DatabaseInfo{
		SizeBytes: sampler.EstimateBytes(snap.Len()),
		Entries:   snap.Len(),
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureApply, db.FeatureRange,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureApply |
		db.FeatureRange |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the tree
func (maple *mapleImpl) Close() error {
	maple.mu.Lock()
	defer maple.mu.Unlock()
	maple.tree = btree.New(maple.degree)
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
