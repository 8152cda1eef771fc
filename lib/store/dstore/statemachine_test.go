package dstore

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/db/engines/leveldb"
	"github.com/ValentinKolb/dPoll/lib/db/engines/maple"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterHandler is a minimal, non-idempotent handler:
// "inc:<key>" increments a counter, "fail:<key>" writes and then fails,
// "panic:<key>" writes and then panics, lookups "<key>" return the counter.
type counterHandler struct{}

var errRefused = errors.New("refused")

func (counterHandler) Apply(kv store.KV, cmd []byte) ([]byte, error) {
	op, key, _ := strings.Cut(string(cmd), ":")
	raw, _, err := kv.Get(key)
	if err != nil {
		return nil, err
	}
	n, _ := strconv.Atoi(string(raw))
	if err := kv.Set(key, []byte(strconv.Itoa(n+1))); err != nil {
		return nil, err
	}
	switch op {
	case "fail":
		return nil, errRefused
	case "panic":
		panic("counter " + key + " exploded")
	}
	return []byte(strconv.Itoa(n + 1)), nil
}

func (counterHandler) Lookup(kv store.KV, query []byte) ([]byte, error) {
	raw, ok, err := kv.Get(string(query))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("not found")
	}
	return raw, nil
}

func newTestMachine(factory store.DBFactory) *HandlerStateMachine {
	create := CreateStateMachineFactory(factory, func() store.Handler { return counterHandler{} })
	return create(1, 1).(*HandlerStateMachine)
}

func entry(index uint64, cmd string) sm.Entry {
	c := internal.Command{Type: internal.CommandTApply, Payload: []byte(cmd)}
	return sm.Entry{Index: index, Cmd: c.Serialize()}
}

func lookup(t *testing.T, fsm *HandlerStateMachine, key string) internal.QueryResult {
	t.Helper()
	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTLookup, Payload: []byte(key)})
	require.NoError(t, err)
	return res.(internal.QueryResult)
}

func TestUpdateAppliesTransitions(t *testing.T) {
	fsm := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer fsm.Close()

	entries, err := fsm.Update([]sm.Entry{
		entry(1, "inc:a"),
		entry(2, "inc:a"),
		entry(3, "fail:a"),
		entry(4, "inc:b"),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(store.RetCSuccess), entries[0].Result.Value)
	assert.Equal(t, "1", string(entries[0].Result.Data))
	assert.Equal(t, "2", string(entries[1].Result.Data))

	// the rejected entry carries the handler error and its writes are dropped
	assert.Equal(t, uint64(store.RetCRejected), entries[2].Result.Value)
	assert.Equal(t, errRefused.Error(), string(entries[2].Result.Data))
	assert.Equal(t, "2", string(lookup(t, fsm, "a").Data))

	assert.Equal(t, uint64(store.RetCSuccess), entries[3].Result.Value)
	assert.Equal(t, uint64(4), fsm.database.WriteIdx())
}

func TestUpdateInvalidEntries(t *testing.T) {
	fsm := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer fsm.Close()

	unknown := internal.Command{Type: internal.CommandType(99)}

	entries, err := fsm.Update([]sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{0, 1, 2}},
		{Index: 3, Cmd: unknown.Serialize()},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(store.RetCInvalidOperation), entries[0].Result.Value)
	assert.Equal(t, uint64(store.RetCInternalError), entries[1].Result.Value)
	assert.Equal(t, uint64(store.RetCInvalidOperation), entries[2].Result.Value)
	assert.Equal(t, 0, fsm.database.GetInfo().Entries)
	assert.Equal(t, uint64(3), fsm.database.WriteIdx())
}

func TestUpdateRecoversPanickingHandler(t *testing.T) {
	fsm := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer fsm.Close()

	entries, err := fsm.Update([]sm.Entry{
		entry(1, "inc:a"),
		entry(2, "panic:a"),
		entry(3, "inc:a"),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(store.RetCInternalError), entries[1].Result.Value)
	assert.Contains(t, string(entries[1].Result.Data), "counter a exploded")

	// the writes of the panicking entry are dropped, the index still advances
	assert.Equal(t, uint64(store.RetCSuccess), entries[2].Result.Value)
	assert.Equal(t, "2", string(entries[2].Result.Data))
	assert.Equal(t, uint64(3), fsm.database.WriteIdx())
}

func TestUpdateVoteAfterPollRecreated(t *testing.T) {
	create := CreateStateMachineFactory(
		func() db.KVDB { return maple.NewMapleDB(nil) },
		func() store.Handler { return poll.NewHandler(poll.DefaultApi()) },
	)
	fsm := create(1, 1).(*HandlerStateMachine)
	defer fsm.Close()

	createPoll := `{"sender":"alice","execute":{"create_poll":{"poll_id":"p1","question":"Q?","options":["A","B"]}}}`
	entries, err := fsm.Update([]sm.Entry{
		entry(1, createPoll),
		entry(2, `{"sender":"bob","execute":{"vote":{"poll_id":"p1","vote":"A"}}}`),
		entry(3, createPoll),
		entry(4, `{"sender":"bob","execute":{"vote":{"poll_id":"p1","vote":"B"}}}`),
		entry(5, `{"sender":"carol","execute":{"vote":{"poll_id":"p1","vote":"A"}}}`),
	})
	require.NoError(t, err)

	for _, i := range []int{0, 1, 2, 4} {
		assert.Equal(t, uint64(store.RetCSuccess), entries[i].Result.Value, "entry %d: %s", i+1, entries[i].Result.Data)
	}
	assert.Equal(t, uint64(store.RetCInternalError), entries[3].Result.Value)
	assert.Equal(t, uint64(5), fsm.database.WriteIdx())

	res := lookup(t, fsm, `{"poll":{"poll_id":"p1"}}`)
	require.Equal(t, store.RetCSuccess, res.Code, res.Msg)
	assert.JSONEq(t,
		`{"poll":{"creator":"alice","question":"Q?","options":[{"label":"A","tally":1},{"label":"B","tally":0}]}}`,
		string(res.Data))
}

func TestLookup(t *testing.T) {
	fsm := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer fsm.Close()

	_, err := fsm.Update([]sm.Entry{entry(1, "inc:a")})
	require.NoError(t, err)

	res := lookup(t, fsm, "a")
	assert.Equal(t, store.RetCSuccess, res.Code)
	assert.Equal(t, "1", string(res.Data))

	res = lookup(t, fsm, "missing")
	assert.Equal(t, store.RetCRejected, res.Code)
	assert.Equal(t, "not found", res.Msg)

	info, err := fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	require.NoError(t, err)
	assert.Equal(t, 1, info.(db.DatabaseInfo).Entries)

	_, err = fsm.Lookup("not a query")
	assert.Error(t, err)

	_, err = fsm.Lookup(internal.Query{Type: internal.QueryType(42)})
	assert.Error(t, err)
}

func TestReplayIsDeterministic(t *testing.T) {
	raftLog := []sm.Entry{
		entry(1, "inc:a"),
		entry(2, "inc:b"),
		entry(3, "fail:b"),
		entry(4, "inc:a"),
	}

	results := make([][]sm.Result, 2)
	states := make([][]byte, 2)

	for i := range results {
		fsm := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })

		// copy the entries, Update writes the results in place
		entries, err := fsm.Update(append([]sm.Entry(nil), raftLog...))
		require.NoError(t, err)
		for _, e := range entries {
			results[i] = append(results[i], e.Result)
		}

		var buf bytes.Buffer
		require.NoError(t, fsm.SaveSnapshot(nil, &buf, nil, nil))
		states[i] = buf.Bytes()
		fsm.Close()
	}

	assert.Equal(t, results[0], results[1])
	assert.Equal(t, states[0], states[1])
}

func TestSnapshotRestore(t *testing.T) {
	src := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer src.Close()

	_, err := src.Update([]sm.Entry{entry(1, "inc:a"), entry(2, "inc:a"), entry(3, "inc:b")})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.SaveSnapshot(nil, &buf, nil, nil))

	dst := newTestMachine(func() db.KVDB { return maple.NewMapleDB(nil) })
	defer dst.Close()
	require.NoError(t, dst.RecoverFromSnapshot(&buf, nil, nil))

	assert.Equal(t, "2", string(lookup(t, dst, "a").Data))
	assert.Equal(t, "1", string(lookup(t, dst, "b").Data))

	// entries after the snapshot continue from the restored state
	entries, err := dst.Update([]sm.Entry{entry(4, "inc:a")})
	require.NoError(t, err)
	assert.Equal(t, "3", string(entries[0].Result.Data))
}

func TestReplayOnPersistentDatabaseSkipsAppliedEntries(t *testing.T) {
	path := t.TempDir()
	factory := func() db.KVDB {
		database, err := leveldb.NewLevelDB(path)
		require.NoError(t, err)
		return database
	}

	fsm := newTestMachine(factory)
	_, err := fsm.Update([]sm.Entry{entry(1, "inc:a"), entry(2, "inc:a")})
	require.NoError(t, err)
	require.NoError(t, fsm.Close())

	// after a restart without snapshot the whole log is replayed
	fsm = newTestMachine(factory)
	defer fsm.Close()

	_, err = fsm.Update([]sm.Entry{entry(1, "inc:a"), entry(2, "inc:a"), entry(3, "inc:a")})
	require.NoError(t, err)

	assert.Equal(t, "3", string(lookup(t, fsm, "a").Data))
}
