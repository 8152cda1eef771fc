package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Apply", func(t *testing.T) {
			testApply(t, factory())
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, factory())
		})

		t.Run("RangeWhileWriting", func(t *testing.T) {
			testRangeWhileWriting(t, factory())
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentApply", func(t *testing.T) {
			testConcurrentApply(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// collect returns all keys of a range scan in the order they were visited
func collect(database db.KVDB, start, end string) []string {
	var keys []string
	database.Range(start, end, func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 2)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// the returned slice must be a copy
	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	result, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Modifying a returned value changed the stored value: %s", result)
	}

	// the stored value must be a copy too
	input := []byte("mutable")
	database.Set("copy-key", input, 3)
	input[0] = 'X'

	result, _ = database.Get("copy-key")
	if !bytes.Equal(result, []byte("mutable")) {
		t.Errorf("Modifying the input slice changed the stored value: %s", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"

	database.Set(testKey, []byte("delete-test-value"), 1)

	if _, exists := database.Get(testKey); !exists {
		t.Fatalf("Key should exist before deletion")
	}

	database.Delete(testKey, 2)

	if _, exists := database.Get(testKey); exists {
		t.Errorf("Key should not exist after deletion")
	}

	// deleting a missing key is a no-op
	database.Delete("nonexistent-key", 3)

	if _, exists := database.Get("nonexistent-key"); exists {
		t.Errorf("Deleting a missing key created it")
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureDelete)

	testKey := "has-test-key"

	if database.Has(testKey) {
		t.Errorf("Has() should return false for nonexistent key")
	}

	database.Set(testKey, []byte("has-test-value"), 1)

	if !database.Has(testKey) {
		t.Errorf("Has() should return true for existing key")
	}

	database.Delete(testKey, 2)

	if database.Has(testKey) {
		t.Errorf("Has() should return false for deleted key")
	}
}

func testApply(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureApply|db.FeatureGet)

	database.Apply([]db.Op{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "c", Value: []byte("3")},
	}, 1)

	tests := []struct {
		key      string
		expected string
	}{
		{"a", "1"},
		{"b", "2"},
		{"c", "3"},
	}

	for _, tt := range tests {
		value, exists := database.Get(tt.key)
		if !exists || string(value) != tt.expected {
			t.Errorf("Expected %s=%s after Apply, got %q (exists=%v)", tt.key, tt.expected, value, exists)
		}
	}

	// ops are applied in order, later ops on the same key win
	database.Apply([]db.Op{
		{Key: "a", Delete: true},
		{Key: "b", Value: []byte("20")},
		{Key: "b", Value: []byte("200")},
		{Key: "c", Delete: true},
		{Key: "c", Value: []byte("30")},
		{Key: "d", Value: []byte("4")},
		{Key: "d", Delete: true},
	}, 2)

	if _, exists := database.Get("a"); exists {
		t.Errorf("Expected a to be deleted")
	}
	if value, _ := database.Get("b"); string(value) != "200" {
		t.Errorf("Expected b=200, got %s", value)
	}
	if value, _ := database.Get("c"); string(value) != "30" {
		t.Errorf("Expected c=30, got %s", value)
	}
	if _, exists := database.Get("d"); exists {
		t.Errorf("Expected d to be deleted")
	}

	// an empty batch only advances the write index
	database.Apply(nil, 3)
	if database.WriteIdx() != 3 {
		t.Errorf("Expected write index 3 after empty Apply, got %d", database.WriteIdx())
	}
}

func testRange(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureRange)

	// inserted out of order on purpose
	for i, key := range []string{"p/3", "b/1", "p/1", "p/10", "a", "p/2", "q", "p"} {
		database.Set(key, []byte(key), uint64(i+1))
	}

	tests := []struct {
		name     string
		start    string
		end      string
		expected []string
	}{
		{"All", "", "", []string{"a", "b/1", "p", "p/1", "p/10", "p/2", "p/3", "q"}},
		{"Prefix", "p/", "p0", []string{"p/1", "p/10", "p/2", "p/3"}},
		{"StartInclusive", "p/2", "", []string{"p/2", "p/3", "q"}},
		{"EndExclusive", "", "p/1", []string{"a", "b/1", "p"}},
		{"Empty", "x", "z", nil},
		{"StartAfterEnd", "q", "a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := collect(database, tt.start, tt.end)
			if !equalKeys(keys, tt.expected) {
				t.Errorf("Range(%q, %q): expected %v, got %v", tt.start, tt.end, tt.expected, keys)
			}
		})
	}

	// returning false stops the scan
	var visited []string
	database.Range("", "", func(key string, value []byte) bool {
		if key != string(value) {
			t.Errorf("Range passed value %s for key %s", value, key)
		}
		visited = append(visited, key)
		return len(visited) < 3
	})
	if !equalKeys(visited, []string{"a", "b/1", "p"}) {
		t.Errorf("Expected scan to stop after 3 entries, visited %v", visited)
	}
}

func testRangeWhileWriting(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureRange|db.FeatureGet)

	for i := 0; i < 10; i++ {
		database.Set(fmt.Sprintf("k%02d", i), []byte("v"), uint64(i+1))
	}

	// writing from inside the callback must neither deadlock nor corrupt the scan
	count := 0
	database.Range("", "", func(key string, _ []byte) bool {
		database.Set(key+"-copy", []byte("c"), 100)
		database.Delete(key, 100)
		count++
		return true
	})

	if count < 10 {
		t.Errorf("Expected at least 10 visited entries, got %d", count)
	}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%02d", i)
		if _, exists := database.Get(key); exists {
			t.Errorf("Expected %s to be deleted", key)
		}
		if _, exists := database.Get(key + "-copy"); !exists {
			t.Errorf("Expected %s-copy to exist", key)
		}
	}
}

func testWriteIndex(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)

	if database.WriteIdx() != 0 {
		t.Errorf("Expected initial write index 0, got %d", database.WriteIdx())
	}

	database.Set("a", []byte("1"), 5)
	if database.WriteIdx() != 5 {
		t.Errorf("Expected write index 5, got %d", database.WriteIdx())
	}

	// the index never moves backwards
	database.Set("b", []byte("2"), 3)
	if database.WriteIdx() != 5 {
		t.Errorf("Expected write index to stay at 5, got %d", database.WriteIdx())
	}

	database.SetWriteIdx(7)
	if database.WriteIdx() != 7 {
		t.Errorf("Expected write index 7, got %d", database.WriteIdx())
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad|db.FeatureRange)

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%04d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		database.Set(key, value, uint64(i+1))
	}

	// entries of the target database must be replaced, not merged
	database2.Set("stale-key", []byte("stale"), 1)

	var buf bytes.Buffer
	err := database.Save(&buf)
	if err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	err = database2.Load(&buf)
	if err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if _, exists := database2.Get("stale-key"); exists {
		t.Errorf("Load did not replace the existing state")
	}

	if database2.WriteIdx() != database.WriteIdx() {
		t.Errorf("Write index mismatch after Load: expected %d, got %d", database.WriteIdx(), database2.WriteIdx())
	}

	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	// order is preserved
	if keys := collect(database2, "", ""); !equalKeys(keys, originalKeys) {
		t.Errorf("Range order mismatch after Load")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureRange)

	emptyValueKey := "empty-value-key"
	database.Set(emptyValueKey, []byte{}, 1)

	result, exists := database.Get(emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value mismatch: %v", result)
	}

	nilValueKey := "nil-value-key"
	database.Set(nilValueKey, nil, 2)

	result, exists = database.Get(nilValueKey)
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	// binary keys (length prefixes, zero bytes) must be ordered bytewise
	binaryKeys := []string{"\x00\x01a", "\x00\x01b", "\x00\x02aa", "\x00\xff"}
	for i := len(binaryKeys) - 1; i >= 0; i-- {
		database.Set(binaryKeys[i], []byte{byte(i)}, uint64(10+i))
	}
	if keys := collect(database, "\x00", "\x01"); !equalKeys(keys, binaryKeys) {
		t.Errorf("Binary key order mismatch: expected %q, got %q", binaryKeys, keys)
	}

	largeKey := string(bytes.Repeat([]byte("k"), 1000))
	largeKeyValue := []byte("value for large key")

	database.Set(largeKey, largeKeyValue, 20)

	result, exists = database.Get(largeKey)
	if !exists {
		t.Errorf("Large key not found after Set")
	} else if !bytes.Equal(result, largeKeyValue) {
		t.Errorf("Value mismatch for large key")
	}

	largeValueKey := "large-value-key"
	largeValue := make([]byte, 4*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}

	database.Set(largeValueKey, largeValue, 21)

	result, exists = database.Get(largeValueKey)
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch: got %d bytes, expected %d", len(result), len(largeValue))
	}
}

func testConcurrentApply(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureApply|db.FeatureGet|db.FeatureRange)

	// every batch writes a pair of keys, a reader must never see only one half of a pair
	numWorkers := 8
	batchesPerWorker := 200

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < batchesPerWorker; i++ {
				value := []byte(fmt.Sprintf("%d-%d", workerId, i))
				database.Apply([]db.Op{
					{Key: fmt.Sprintf("left/%d", workerId), Value: value},
					{Key: fmt.Sprintf("right/%d", workerId), Value: value},
				}, uint64(workerId*batchesPerWorker+i+1))
			}
		}(w)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			left := map[string]string{}
			database.Range("left/", "left0", func(key string, value []byte) bool {
				left[key[len("left/"):]] = string(value)
				return true
			})
			for worker := range left {
				if !database.Has("right/" + worker) {
					t.Errorf("Saw left/%s without right/%s", worker, worker)
					return
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	for w := 0; w < numWorkers; w++ {
		expected := fmt.Sprintf("%d-%d", w, batchesPerWorker-1)
		left, _ := database.Get(fmt.Sprintf("left/%d", w))
		right, _ := database.Get(fmt.Sprintf("right/%d", w))
		if string(left) != expected || string(right) != expected {
			t.Errorf("Worker %d: expected %s, got left=%s right=%s", w, expected, left, right)
		}
	}
}
