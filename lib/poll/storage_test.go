package poll

import (
	"testing"

	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "\x00\x05polls", namespace("polls"))
	assert.Equal(t, "\x00\x05pollsp1", polls.key("p1"))
	assert.Equal(t, "\x00\x07ballots\x00\x05alicep1", ballots.key(BallotKey{Voter: "alice", PollID: "p1"}))
}

func TestBallotKeyCodec(t *testing.T) {
	codec := ballotKeyCodec{}

	// the length prefix keeps (ab, c) and (a, bc) apart
	assert.NotEqual(t,
		codec.Encode(BallotKey{Voter: "ab", PollID: "c"}),
		codec.Encode(BallotKey{Voter: "a", PollID: "bc"}))

	for _, k := range []BallotKey{{"voter", "p1"}, {"voter", ""}, {"v", "poll/with/slashes"}} {
		got, err := codec.Decode(codec.Encode(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	for _, broken := range []string{"", "\x00", "\x00\x09short"} {
		_, err := codec.Decode(broken)
		assert.Error(t, err, "%q", broken)
	}
}

func TestMapRangeStaysInNamespace(t *testing.T) {
	s := newState(t)
	s.must(func(kv store.KV) (*Response, error) {
		// "poll" sorts before "polls" but has a different length prefix
		require.NoError(t, kv.Set(namespace("poll")+"x", []byte(`{}`)))
		require.NoError(t, kv.Set(namespace("pollsx"), []byte(`{}`)))
		return nil, polls.Save(kv, "p1", Poll{Creator: "c"})
	})

	seen := map[string]Poll{}
	require.NoError(t, polls.Range(s.kv(), func(id string, p Poll) bool {
		seen[id] = p
		return true
	}))
	assert.Equal(t, map[string]Poll{"p1": {Creator: "c"}}, seen)
}

func TestCorruptRecordIsInternalError(t *testing.T) {
	s := newState(t)
	s.must(func(kv store.KV) (*Response, error) {
		return nil, kv.Set(polls.key("p1"), []byte("not json"))
	})

	_, err := QueryPoll(s.kv(), "p1")
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCInternalError, storeErr.Code)

	_, err = QueryAllPolls(s.kv())
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCInternalError, storeErr.Code)
}

func TestItemLoadMissing(t *testing.T) {
	s := newState(t)
	_, err := configItem.Load(s.kv())
	assert.Error(t, err)

	cfg, err := configItem.MayLoad(s.kv())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
