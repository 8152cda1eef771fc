package common

import (
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		code store.RetCode
		text string
	}{
		{"Success", NewApplyResponse([]byte("{}"), nil), store.RetCSuccess, ""},
		{"Rejected", NewApplyResponse(nil, store.NewError(store.RetCRejected, "poll not found")), store.RetCRejected, "poll not found"},
		{"PlainError", NewLookupResponse(nil, errors.New("boom")), store.RetCInternalError, "boom"},
		{"ErrorResponse", NewErrorResponse("shard 9 not found"), store.RetCInternalError, "shard 9 not found"},
		{"ErrorWithoutText", &Message{MsgType: MsgTError}, store.RetCInternalError, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.AsError()
			if tt.code == store.RetCSuccess {
				assert.NoError(t, err)
				return
			}
			var storeErr *store.Error
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, tt.code, storeErr.Code)
			assert.Equal(t, tt.text, storeErr.Msg)
		})
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTSuccess; mt <= MsgTDBInfo; mt++ {
		data, err := mt.MarshalJSON()
		require.NoError(t, err)

		var back MessageType
		require.NoError(t, back.UnmarshalJSON(data))
		assert.Equal(t, mt, back)
	}

	var mt MessageType
	assert.Error(t, mt.UnmarshalJSON([]byte(`"set"`)))
}

func TestParseConfigValues(t *testing.T) {
	st, err := ParseShardType("DSTORE")
	require.NoError(t, err)
	assert.Equal(t, ShardTypeDistributed, st)
	_, err = ParseShardType("lock")
	assert.Error(t, err)

	engine, err := ParseStorageEngine("leveldb")
	require.NoError(t, err)
	assert.Equal(t, EngineLevelDB, engine)
	_, err = ParseStorageEngine("redis")
	assert.Error(t, err)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestServerConfigString(t *testing.T) {
	config := ServerConfig{
		Shards:         []ServerShard{{ShardID: 100, Type: ShardTypeLocal}, {ShardID: 200, Type: ShardTypeDistributed}},
		Engine:         EngineLevelDB,
		DataDir:        "/tmp/dpoll",
		ReplicaID:      1,
		ClusterMembers: map[uint64]string{1: "node1:63001", 2: "node2:63001"},
		Endpoint:       ":8080",
	}
	out := config.String()
	assert.True(t, config.HasDistributedShard())
	for _, want := range []string{"lstore", "dstore", "leveldb", "node2:63001", "/tmp/dpoll"} {
		assert.True(t, strings.Contains(out, want), "missing %q in\n%s", want, out)
	}
	assert.Equal(t, "/tmp/dpoll/shard-100", config.ShardDir(100))
}
