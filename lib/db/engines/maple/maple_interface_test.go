package maple

import (
	"bytes"
	"github.com/ValentinKolb/dPoll/lib/db"
	dbtesting "github.com/ValentinKolb/dPoll/lib/db/testing"
	"testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestLoadRejectsForeignFormat(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	database.Set("keep", []byte("me"), 1)

	if err := database.Load(bytes.NewReader([]byte("NOTMAPLE-and-some-more-bytes"))); err == nil {
		t.Errorf("Expected Load to fail on a foreign header")
	}

	// a failed load must not touch the current state
	if v, ok := database.Get("keep"); !ok || string(v) != "me" {
		t.Errorf("Expected existing entry to survive failed Load, got %q (exists=%v)", v, ok)
	}
}

func TestLoadRestoresWriteIndex(t *testing.T) {
	src := NewMapleDB(&DBOptions{Degree: 4})
	dst := NewMapleDB(nil)
	defer src.Close()
	defer dst.Close()

	for i := 0; i < 100; i++ {
		src.Set(string(rune('a'+i%26))+string(rune('a'+i/26)), []byte{byte(i)}, uint64(i+1))
	}

	var buf bytes.Buffer
	if err := src.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := dst.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if dst.WriteIdx() != 100 {
		t.Errorf("Expected write index 100 after Load, got %d", dst.WriteIdx())
	}
	if info := dst.GetInfo(); info.Entries != 100 {
		t.Errorf("Expected 100 entries after Load, got %d", info.Entries)
	}
}

func TestGetInfo(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	info := database.GetInfo()
	if info.Entries != 0 || info.SizeBytes != 0 {
		t.Errorf("Expected empty info, got %+v", info)
	}
	if info.DbType != db.ImplMaple {
		t.Errorf("Expected db type %s, got %s", db.ImplMaple, info.DbType)
	}

	database.Set("a", make([]byte, 64), 1)
	database.Set("b", make([]byte, 64), 2)

	info = database.GetInfo()
	if info.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", info.Entries)
	}
	if info.SizeBytes < 2*64 {
		t.Errorf("Expected size estimate of at least %d bytes, got %d", 2*64, info.SizeBytes)
	}
	if database.SupportsFeature(db.FeaturePersistent) {
		t.Errorf("Expected in-memory engine to not be persistent")
	}
}
