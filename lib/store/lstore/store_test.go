package lstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/db/engines/leveldb"
	"github.com/ValentinKolb/dPoll/lib/db/engines/maple"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// pairHandler writes two keys per command, or fails after the first one if the command is "fail"
// and panics after the first one if it is "panic". Lookups count the pairs.
type pairHandler struct{}

func (pairHandler) Apply(kv store.KV, cmd []byte) ([]byte, error) {
	if err := kv.Set("left/"+string(cmd), cmd); err != nil {
		return nil, err
	}
	if string(cmd) == "fail" {
		return nil, errors.New("second half missing")
	}
	if string(cmd) == "panic" {
		panic("second half missing")
	}
	if err := kv.Set("right/"+string(cmd), cmd); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (pairHandler) Lookup(kv store.KV, _ []byte) ([]byte, error) {
	left, right := 0, 0
	err := kv.Range("", "", func(key string, _ []byte) bool {
		switch key[0] {
		case 'l':
			left++
		case 'r':
			right++
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if left != right {
		return nil, fmt.Errorf("torn transition: %d left, %d right", left, right)
	}
	// lookups must not be able to write
	if err := kv.Set("x", nil); err == nil {
		return nil, errors.New("lookup view accepted a write")
	}
	return []byte(fmt.Sprint(left)), nil
}

func TestApplyAndLookup(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, pairHandler{})
	defer s.Close()

	res, err := s.Apply([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res))

	res, err = s.Lookup(nil)
	require.NoError(t, err)
	assert.Equal(t, "1", string(res))

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, 2, info.Entries)
}

func TestRejectedTransitionLeavesNoTrace(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, pairHandler{})
	defer s.Close()

	_, err := s.Apply([]byte("fail"))

	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCRejected, storeErr.Code)
	assert.Equal(t, "second half missing", storeErr.Msg)

	info, _ := s.GetDBInfo()
	assert.Equal(t, 0, info.Entries)
}

func TestPanickingTransitionLeavesNoTrace(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, pairHandler{})
	defer s.Close()

	_, err := s.Apply([]byte("panic"))

	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCInternalError, storeErr.Code)
	assert.Contains(t, storeErr.Msg, "second half missing")

	info, _ := s.GetDBInfo()
	assert.Equal(t, 0, info.Entries)

	// the store keeps serving
	res, err := s.Apply([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res))

	res, err = s.Lookup(nil)
	require.NoError(t, err)
	assert.Equal(t, "1", string(res))
}

func TestConcurrentTransitions(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, pairHandler{})
	defer s.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cmd := fmt.Sprintf("%d-%d", w, i)
				if i%10 == 0 {
					cmd = "fail"
				}
				s.Apply([]byte(cmd))
				if _, err := s.Lookup(nil); err != nil {
					t.Errorf("Lookup failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	res, err := s.Lookup(nil)
	require.NoError(t, err)
	assert.Equal(t, "360", string(res))
}

func TestWriteIndexContinuesOnReopen(t *testing.T) {
	path := t.TempDir()
	factory := func() db.KVDB {
		database, err := leveldb.NewLevelDB(path)
		require.NoError(t, err)
		return database
	}

	s := NewLocalStore(factory, pairHandler{})
	_, err := s.Apply([]byte("a"))
	require.NoError(t, err)
	_, err = s.Apply([]byte("b"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = NewLocalStore(factory, pairHandler{})
	defer s.Close()

	info, _ := s.GetDBInfo()
	assert.Equal(t, 4, info.Entries)

	_, err = s.Apply([]byte("c"))
	require.NoError(t, err)

	info, _ = s.GetDBInfo()
	meta, err := json.Marshal(info.Metadata)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), gjson.GetBytes(meta, "current_write_index").Uint())
}
