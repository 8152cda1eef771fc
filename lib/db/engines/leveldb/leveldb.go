package leveldb

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/db/util"
	lvl "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	lutil "github.com/syndtr/goleveldb/leveldb/util"
	"io"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	kData = "d:"     // prefix of all user keys
	kMeta = "m:meta" // engine metadata (write index)

	magicNum        = "LVLDBSNP" // snapshot format identifier
	snapshotVersion = 1
	sampleLimit     = 1000 // max entries sampled by GetInfo
)

// meta is the engine metadata persisted under kMeta
type meta struct {
	WriteIndex uint64 `json:"writeIndex"`
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// levelImpl implements db.KVDB on top of goleveldb. User keys are stored below kData,
// the write index below kMeta. Every batch writes its data and the new write index in
// one leveldb batch, so the index on disk always matches the data on disk.
type levelImpl struct {
	db         *lvl.DB
	path       string
	persistent bool
	writeMu    sync.Mutex // orders batches, so the persisted index never moves backwards
	currIndex  atomic.Uint64
}

// NewLevelDB opens (or creates) a leveldb database in the given directory.
// The write index stored in the directory is restored.
func NewLevelDB(path string) (db.KVDB, error) {
	ldb, err := lvl.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return newLevelImpl(ldb, path, true)
}

// NewMemLevelDB creates a leveldb database backed by memory storage, mainly for tests
// and for shards that do not need to survive a restart
func NewMemLevelDB() db.KVDB {
	ldb, err := lvl.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic(err)
	}
	l, err := newLevelImpl(ldb, "", false)
	if err != nil {
		panic(err)
	}
	return l
}

func newLevelImpl(ldb *lvl.DB, path string, persistent bool) (*levelImpl, error) {
	l := &levelImpl{
		db:         ldb,
		path:       path,
		persistent: persistent,
	}

	m, err := l.getMeta()
	if err != nil {
		_ = ldb.Close()
		return nil, err
	}
	l.currIndex.Store(m.WriteIndex)

	return l, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func dataKey(key string) []byte {
	return []byte(kData + key)
}

func (l *levelImpl) getMeta() (meta, error) {
	m := meta{}
	buf, err := l.db.Get([]byte(kMeta), nil)
	if errors.Is(err, lvl.ErrNotFound) {
		return m, nil
	} else if err != nil {
		return m, err
	}
	err = json.Unmarshal(buf, &m)
	return m, err
}

func putMeta(batch *lvl.Batch, writeIdx uint64) {
	buf, _ := json.Marshal(meta{WriteIndex: writeIdx})
	batch.Put([]byte(kMeta), buf)
}

// dataRange returns the leveldb range for user keys in [start, end)
func dataRange(start, end string) *lutil.Range {
	rg := lutil.BytesPrefix([]byte(kData))
	rg.Start = dataKey(start)
	if end != "" {
		rg.Limit = dataKey(end)
	}
	return rg
}

// advance raises the cached write index and returns the value to persist
func (l *levelImpl) advance(newIdx uint64) uint64 {
	for {
		currIdx := l.currIndex.Load()
		if newIdx <= currIdx {
			return currIdx
		}
		if l.currIndex.CompareAndSwap(currIdx, newIdx) {
			return newIdx
		}
	}
}

// mustWrite writes the batch, I/O failures of the underlying storage are not recoverable.
// The caller holds writeMu.
func (l *levelImpl) mustWrite(batch *lvl.Batch) {
	if err := l.db.Write(batch, nil); err != nil {
		panic(err)
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (l *levelImpl) Set(key string, value []byte, writeIdx uint64) {
	l.Apply([]db.Op{{Key: key, Value: value}}, writeIdx)
}

func (l *levelImpl) Delete(key string, writeIdx uint64) {
	l.Apply([]db.Op{{Key: key, Delete: true}}, writeIdx)
}

// Apply writes all ops and the write index in a single leveldb batch
func (l *levelImpl) Apply(ops []db.Op, writeIdx uint64) {
	batch := new(lvl.Batch)
	for _, op := range ops {
		if op.Delete {
			batch.Delete(dataKey(op.Key))
		} else {
			batch.Put(dataKey(op.Key), op.Value)
		}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	putMeta(batch, l.advance(writeIdx))
	l.mustWrite(batch)
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (l *levelImpl) Get(key string) ([]byte, bool) {
	buf, err := l.db.Get(dataKey(key), nil)
	if errors.Is(err, lvl.ErrNotFound) {
		return nil, false
	} else if err != nil {
		panic(err)
	}
	return buf, true
}

func (l *levelImpl) Has(key string) bool {
	ok, err := l.db.Has(dataKey(key), nil)
	if err != nil {
		panic(err)
	}
	return ok
}

// Range iterates over an implicit snapshot, fn may write to the database
func (l *levelImpl) Range(start, end string, fn db.RangeFunc) {
	if end != "" && end <= start {
		return
	}
	iter := l.db.NewIterator(dataRange(start, end), nil)
	defer iter.Release()

	for iter.Next() {
		if !fn(string(iter.Key()[len(kData):]), iter.Value()) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		panic(err)
	}
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of all user keys to w.
// Format (little endian): magic, version (u8), write index (u64), then for each entry a
// marker byte 1, key length (u32), key, value length (u32), value. A marker byte 0 ends the stream.
func (l *levelImpl) Save(w io.Writer) error {
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()

	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}

	// the index is read from the snapshot, not from the cache, so it matches the data
	m := meta{}
	if buf, err := snap.Get([]byte(kMeta), nil); err == nil {
		if err := json.Unmarshal(buf, &m); err != nil {
			return err
		}
	} else if !errors.Is(err, lvl.ErrNotFound) {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, m.WriteIndex); err != nil {
		return err
	}

	iter := snap.NewIterator(lutil.BytesPrefix([]byte(kData)), nil)
	defer iter.Release()

	for iter.Next() {
		if err := writeEntry(bw, iter); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}

	if err := bw.WriteByte(0); err != nil {
		return err
	}
	return bw.Flush()
}

func writeEntry(w *bufio.Writer, iter iterator.Iterator) error {
	key := iter.Key()[len(kData):]
	value := iter.Value()

	if err := w.WriteByte(1); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(key))); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(value))); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

// Load replaces all user keys with the content of r in one leveldb batch
func (l *levelImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, snapshotVersion)
	}

	var writeIdx uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}

	batch := new(lvl.Batch)

	// drop the current state first, the puts below override deletes of the same key
	iter := l.db.NewIterator(lutil.BytesPrefix([]byte(kData)), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}

	for {
		marker, err := br.ReadByte()
		if err != nil {
			return err
		}
		if marker == 0 {
			break
		}

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

		batch.Put(dataKey(string(key)), value)
	}

	putMeta(batch, writeIdx)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.db.Write(batch, nil); err != nil {
		return err
	}
	l.currIndex.Store(writeIdx)
	return nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (l *levelImpl) GetInfo() db.DatabaseInfo {
	sampler := util.NewSizeSampler()
	entries := 0

	iter := l.db.NewIterator(lutil.BytesPrefix([]byte(kData)), nil)
	for iter.Next() {
		if entries < sampleLimit {
			sampler.Add(len(iter.Key())-len(kData), len(iter.Value()))
		}
		entries++
	}
	iter.Release()

	// on-disk size of the data range, as reported by leveldb
	sizeBytes := sampler.EstimateBytes(entries)
	if sizes, err := l.db.SizeOf([]lutil.Range{*lutil.BytesPrefix([]byte(kData))}); err == nil && sizes.Sum() > 0 {
		sizeBytes = int(sizes.Sum())
	}

	stats, _ := l.db.GetProperty("leveldb.stats")

	features := []db.Feature{
		db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
		db.FeatureApply, db.FeatureRange,
		db.FeatureSave, db.FeatureLoad,
	}
	if l.persistent {
		features = append(features, db.FeaturePersistent)
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Entries:           entries,
		DbType:            db.ImplLevelDB,
		SupportedFeatures: features,
		Metadata: &struct {
			CurrentWriteIndex uint64         `json:"current_write_index"`
			Path              string         `json:"path,omitempty"`
			EntrySizes        util.SizeStats `json:"entry_sizes"`
			Stats             string         `json:"leveldb_stats"`
		}{
			CurrentWriteIndex: l.WriteIdx(),
			Path:              l.path,
			EntrySizes:        sampler.Stats(),
			Stats:             stats,
		},
	}
}

func (l *levelImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureApply |
		db.FeatureRange |
		db.FeatureSave |
		db.FeatureLoad
	if l.persistent {
		supportedFeatures |= db.FeaturePersistent
	}
	return supportedFeatures&feature == feature
}

func (l *levelImpl) Close() error {
	return l.db.Close()
}

// --------------------------------------------------------------------------
// Write Index
// --------------------------------------------------------------------------

func (l *levelImpl) SetWriteIdx(newIdx uint64) {
	if l.currIndex.Load() >= newIdx {
		return
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	batch := new(lvl.Batch)
	putMeta(batch, l.advance(newIdx))
	l.mustWrite(batch)
}

func (l *levelImpl) WriteIdx() uint64 {
	return l.currIndex.Load()
}
