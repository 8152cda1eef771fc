package poll

import (
	"testing"

	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestHandlerApply(t *testing.T) {
	s := newState(t)
	h := NewHandler(DefaultApi())

	apply := func(raw string) ([]byte, error) {
		var out []byte
		_, _, err := s.run(func(kv store.KV) (*Response, error) {
			var err error
			out, err = h.Apply(kv, []byte(raw))
			return nil, err
		})
		return out, err
	}

	out, err := apply(`{"sender":"creator","instantiate":{}}`)
	require.NoError(t, err)
	assert.Equal(t, "creator", gjson.GetBytes(out, `attributes.#(key=="admin").value`).String())

	out, err = apply(`{"sender":"creator","execute":{"create_poll":{"poll_id":"p1","question":"?","options":["A","B"]}}}`)
	require.NoError(t, err)
	assert.Equal(t, "create_poll", gjson.GetBytes(out, "attributes.0.value").String())

	_, err = apply(`{"sender":"voter","execute":{"vote":{"poll_id":"p1","vote":"B"}}}`)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, s.tallies("p1"))

	_, err = apply(`{"sender":"voter","execute":{"vote":{"poll_id":"p1","vote":"Z"}}}`)
	assert.ErrorIs(t, err, ErrOptionNotFound)

	_, err = apply(`{"sender":"creator","execute":{"delete_poll":{"poll_id":"p1"}}}`)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = apply(`{"sender":"voter","execute":{"revoke_vote":{"poll_id":"p1","vote":"B"}}}`)
	assert.ErrorIs(t, err, ErrNotImplemented)

	assert.Positive(t, metrics.GetOrCreateCounter(`dpoll_transitions_total{action="vote",result="ok"}`).Get())
	assert.Positive(t, metrics.GetOrCreateCounter(`dpoll_transitions_total{action="vote",result="rejected"}`).Get())
}

func TestHandlerRejectsMalformedCommands(t *testing.T) {
	h := NewHandler(DefaultApi())

	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"NotJSON", `vote for me`, ErrInvalidMessage},
		{"Empty", `{}`, ErrInvalidMessage},
		{"NoVariant", `{"sender":"voter"}`, ErrInvalidMessage},
		{"BothVariants", `{"sender":"voter","instantiate":{},"execute":{"vote":{"poll_id":"p1","vote":"A"}}}`, ErrInvalidMessage},
		{"EmptyExecute", `{"sender":"voter","execute":{}}`, ErrInvalidMessage},
		{"TwoExecuteVariants", `{"sender":"voter","execute":{"vote":{"poll_id":"p1","vote":"A"},"delete_poll":{"poll_id":"p1"}}}`, ErrInvalidMessage},
		{"UnknownVariant", `{"sender":"voter","execute":{"close_poll":{"poll_id":"p1"}}}`, ErrInvalidMessage},
		{"UnknownField", `{"sender":"voter","execute":{"vote":{"poll_id":"p1","vote":"A","weight":3}}}`, ErrInvalidMessage},
		{"TrailingData", `{"sender":"voter","instantiate":{}} {}`, ErrInvalidMessage},
		{"InvalidSender", `{"sender":"Voter","execute":{"vote":{"poll_id":"p1","vote":"A"}}}`, ErrInvalidIdentity},
		{"MissingSender", `{"instantiate":{}}`, ErrInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(t)
			batch := store.NewBatch(s.db)
			_, err := h.Apply(batch, []byte(tt.raw))
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 0, batch.Len())
		})
	}
}

func TestHandlerLookup(t *testing.T) {
	s := newState(t)
	s.createPoll("creator", "p1", "A", "B")
	s.createPoll("creator", "p0", "X")
	require.NoError(t, s.vote("voter", "p1", "A"))

	h := NewHandler(DefaultApi())

	tests := []struct {
		name  string
		query string
		path  string
		want  string
		err   error
	}{
		{"AllPolls", `{"all_polls":{}}`, "polls.#.poll_id", `["p0","p1"]`, nil},
		{"Poll", `{"poll":{"poll_id":"p1"}}`, "poll.options.0.tally", "1", nil},
		{"PollMissing", `{"poll":{"poll_id":"nope"}}`, "poll", "null", nil},
		{"Vote", `{"vote":{"address":"voter","poll_id":"p1"}}`, "vote.option", `"A"`, nil},
		{"VoteMissing", `{"vote":{"address":"other","poll_id":"p1"}}`, "vote", "null", nil},
		{"VoteInvalidAddress", `{"vote":{"address":"X","poll_id":"p1"}}`, "", "", ErrInvalidIdentity},
		{"ConfigUser", `{"config_user":{}}`, "", "", ErrNotImplemented},
		{"AllVoteUser", `{"all_vote_user":{"address":"voter"}}`, "", "", ErrNotImplemented},
		{"NoVariant", `{}`, "", "", ErrInvalidMessage},
		{"TwoVariants", `{"all_polls":{},"poll":{"poll_id":"p1"}}`, "", "", ErrInvalidMessage},
		{"Unknown", `{"polls":{}}`, "", "", ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Lookup(s.kv(), []byte(tt.query))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, gjson.GetBytes(out, tt.path).Raw)
		})
	}
}
