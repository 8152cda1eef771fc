package client

import (
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/db/engines/maple"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/lib/store/lstore"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/ValentinKolb/dPoll/rpc/serializer"
	"github.com/ValentinKolb/dPoll/rpc/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shardId = 7

// backend serves one poll shard the way the RPC server does, on top of a local store
func backend(t *testing.T, s serializer.IRPCSerializer) *httptest.Server {
	t.Helper()
	local := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, poll.NewHandler(poll.DefaultApi()))
	t.Cleanup(func() { local.Close() })

	handle := func(id uint64, req []byte) []byte {
		var msg common.Message
		var resp *common.Message
		switch {
		case id != shardId:
			resp = common.NewErrorResponse("shard not found")
		case s.Deserialize(req, &msg) != nil:
			resp = common.NewErrorResponse("bad request")
		case msg.MsgType == common.MsgTApply:
			res, err := local.Apply(msg.Payload)
			resp = common.NewApplyResponse(res, err)
		case msg.MsgType == common.MsgTLookup:
			res, err := local.Lookup(msg.Payload)
			resp = common.NewLookupResponse(res, err)
		default:
			resp = common.NewErrorResponse("unsupported")
		}
		out, _ := s.Serialize(*resp)
		return out
	}

	srv := httptest.NewServer(http.NewHandler(handle, false))
	t.Cleanup(srv.Close)
	return srv
}

func newRPCStore(t *testing.T, s serializer.IRPCSerializer, id uint64, endpoints ...string) store.IStore {
	t.Helper()
	rpcStore, err := NewRPCStore(id, common.ClientConfig{
		Endpoints:              endpoints,
		TimeoutSecond:          5,
		RetryCount:             2,
		ConnectionsPerEndpoint: 4,
	}, http.NewHttpClientTransport(), s)
	require.NoError(t, err)
	t.Cleanup(func() { rpcStore.Close() })
	return rpcStore
}

func TestPollOverRPC(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob"} {
		t.Run(name, func(t *testing.T) {
			s, err := serializer.ByName(name)
			require.NoError(t, err)
			srv := backend(t, s)

			admin := poll.NewClient(newRPCStore(t, s, shardId, srv.URL), "admin")

			_, err = admin.Instantiate("")
			require.NoError(t, err)
			_, err = admin.CreatePoll("p1", "Best letter?", "A", "B", "C")
			require.NoError(t, err)
			_, err = admin.As("xavier").Vote("p1", "B")
			require.NoError(t, err)
			_, err = admin.As("xavier").Vote("p1", "C")
			require.NoError(t, err)

			p, err := admin.Poll("p1")
			require.NoError(t, err)
			assert.Equal(t, []poll.Option{{Label: "A"}, {Label: "B"}, {Label: "C", Tally: 1}}, p.Options)

			b, err := admin.Ballot("xavier", "p1")
			require.NoError(t, err)
			assert.Equal(t, &poll.Ballot{Option: "C"}, b)

			// typed errors survive the wire
			_, err = admin.Vote("p1", "Z")
			assert.ErrorIs(t, err, poll.ErrOptionNotFound)
			_, err = admin.Vote("nope", "A")
			assert.ErrorIs(t, err, poll.ErrPollNotFound)
			_, err = admin.DeletePoll("p1")
			assert.ErrorIs(t, err, poll.ErrNotImplemented)
			_, err = admin.Ballot("X", "p1")
			assert.ErrorIs(t, err, poll.ErrInvalidIdentity)
		})
	}
}

func TestUnknownShard(t *testing.T) {
	s := serializer.NewBinarySerializer()
	srv := backend(t, s)

	_, err := newRPCStore(t, s, shardId+1, srv.URL).Lookup([]byte(`{"all_polls":{}}`))
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCInternalError, storeErr.Code)
	assert.Contains(t, storeErr.Msg, "shard not found")
}

func TestRetryOnNextEndpoint(t *testing.T) {
	s := serializer.NewBinarySerializer()
	srv := backend(t, s)

	// a closed endpoint in front of a working one
	dead := httptest.NewServer(nethttp.NotFoundHandler())
	dead.Close()

	rpcStore := newRPCStore(t, s, shardId, dead.URL, srv.URL)
	for i := 0; i < 4; i++ {
		_, err := rpcStore.Lookup([]byte(`{"all_polls":{}}`))
		require.NoError(t, err)
	}
}

func TestConcurrentVotesOverRPC(t *testing.T) {
	s := serializer.NewBinarySerializer()
	srv := backend(t, s)
	rpcStore := newRPCStore(t, s, shardId, srv.URL)

	admin := poll.NewClient(rpcStore, "admin")
	_, err := admin.CreatePoll("p1", "?", "A", "B")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := admin.As(fmt.Sprintf("voter-%d", i)).Vote("p1", []string{"A", "B"}[i%2])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := admin.Poll("p1")
	require.NoError(t, err)
	assert.Equal(t, []poll.Option{{Label: "A", Tally: 10}, {Label: "B", Tally: 10}}, p.Options)

	// the counters of the handler show up on the metrics endpoint
	resp, err := nethttp.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "dpoll_transitions_total"))
}
