package server

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/ValentinKolb/dPoll/rpc/serializer"
	"github.com/ValentinKolb/dPoll/rpc/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollHandlers() store.Handler {
	return poll.NewHandler(poll.DefaultApi())
}

func newTestServer(t *testing.T, engine common.StorageEngine, shards ...uint64) *RPCServer {
	t.Helper()
	config := common.ServerConfig{
		Engine:   engine,
		DataDir:  t.TempDir(),
		LogLevel: "info",
	}
	for _, id := range shards {
		config.Shards = append(config.Shards, common.ServerShard{ShardID: id, Type: common.ShardTypeLocal})
	}

	s := NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer(), pollHandlers)
	require.NoError(t, s.init())
	t.Cleanup(func() { s.Close() })
	return s
}

// call sends msg to a shard through Handle and decodes the response
func call(t *testing.T, s *RPCServer, shardId uint64, msg *common.Message) common.Message {
	t.Helper()
	req, err := s.serializer.Serialize(*msg)
	require.NoError(t, err)
	var resp common.Message
	require.NoError(t, s.serializer.Deserialize(s.Handle(shardId, req), &resp))
	return resp
}

func TestHandleShards(t *testing.T) {
	for _, engine := range []common.StorageEngine{common.EngineMaple, common.EngineLevelDB} {
		t.Run(string(engine), func(t *testing.T) {
			s := newTestServer(t, engine, 100, 200)

			create := common.NewApplyRequest([]byte(`{"sender":"admin","execute":{"create_poll":{"poll_id":"p1","question":"?","options":["A"]}}}`))
			resp := call(t, s, 100, create)
			require.NoError(t, resp.AsError())
			assert.Equal(t, common.MsgTApply, resp.MsgType)

			// shards are independent contracts
			lookup := common.NewLookupRequest([]byte(`{"poll":{"poll_id":"p1"}}`))
			resp = call(t, s, 100, lookup)
			require.NoError(t, resp.AsError())
			assert.Contains(t, string(resp.Payload), `"creator":"admin"`)

			resp = call(t, s, 200, lookup)
			require.NoError(t, resp.AsError())
			assert.JSONEq(t, `{"poll":null}`, string(resp.Payload))

			resp = call(t, s, 100, common.NewDBInfoRequest())
			require.NoError(t, resp.AsError())
			var info db.DatabaseInfo
			require.NoError(t, json.Unmarshal(resp.Payload, &info))
			assert.Equal(t, db.Implementation(engine), info.DbType)
			assert.Equal(t, 1, info.Entries)
		})
	}
}

func TestHandleErrors(t *testing.T) {
	s := newTestServer(t, common.EngineMaple, 1)

	t.Run("UnknownShard", func(t *testing.T) {
		resp := call(t, s, 99, common.NewLookupRequest([]byte(`{"all_polls":{}}`)))
		assert.Equal(t, common.MsgTError, resp.MsgType)
		var storeErr *store.Error
		require.ErrorAs(t, resp.AsError(), &storeErr)
		assert.Equal(t, store.RetCInternalError, storeErr.Code)
	})

	t.Run("GarbageRequest", func(t *testing.T) {
		var resp common.Message
		require.NoError(t, s.serializer.Deserialize(s.Handle(1, []byte("garbage")), &resp))
		assert.Equal(t, common.MsgTError, resp.MsgType)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		resp := call(t, s, 1, &common.Message{MsgType: common.MsgTSuccess})
		assert.Equal(t, common.MsgTError, resp.MsgType)
	})

	t.Run("Rejection", func(t *testing.T) {
		resp := call(t, s, 1, common.NewApplyRequest([]byte(`{"sender":"voter","execute":{"vote":{"poll_id":"nope","vote":"A"}}}`)))
		var storeErr *store.Error
		require.ErrorAs(t, resp.AsError(), &storeErr)
		assert.Equal(t, store.RetCRejected, storeErr.Code)
		assert.ErrorIs(t, poll.ParseError(resp.AsError()), poll.ErrPollNotFound)
	})
}

func TestInitRejectsDuplicateShards(t *testing.T) {
	config := common.ServerConfig{
		Engine: common.EngineMaple,
		Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeLocal},
			{ShardID: 1, Type: common.ShardTypeLocal},
		},
	}
	s := NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer(), pollHandlers)
	assert.Error(t, s.init())
	assert.NoError(t, s.Close())
}
