package util

import (
	"bytes"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetClientConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("endpoints", "localhost:8080, http://localhost:8081,,")
	viper.Set("timeout", 3)
	viper.Set("retries", 2)
	viper.Set("conn-per-endpoint", 4)
	viper.Set("shard", 200)

	conf := GetClientConfig()
	assert.Equal(t, []string{"localhost:8080", "http://localhost:8081"}, conf.Endpoints)
	assert.Equal(t, 3, conf.TimeoutSecond)
	assert.Equal(t, 2, conf.RetryCount)
	assert.Equal(t, 4, conf.ConnectionsPerEndpoint)
	assert.Equal(t, uint64(200), GetShardID())
}

func TestGetSerializer(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("serializer", "gob")
	s, err := GetSerializer()
	require.NoError(t, err)
	assert.NotNil(t, s)

	viper.Set("serializer", "xml")
	_, err = GetSerializer()
	assert.Error(t, err)
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", OutputYAML, false},
		{"toml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestWrite(t *testing.T) {
	color.NoColor = true

	p := poll.Poll{
		Creator:  "alice",
		Question: "Lunch?",
		Options:  []poll.Option{{Label: "pizza", Tally: 2}, {Label: "salad", Tally: 0}},
	}

	tests := []struct {
		name   string
		format OutputFormat
		field  string
		want   []string
	}{
		{"text", OutputText, "", []string{"creator: alice\n", "question: Lunch?\n", "options:\n", "  -\n", "    label: pizza\n", "    tally: 2\n"}},
		{"json", OutputJSON, "", []string{"\"creator\": \"alice\"", "\"tally\": 2"}},
		{"yaml", OutputYAML, "", []string{"creator: alice", "label: salad"}},
		{"field text", OutputText, "options.#.tally", []string{"- 2\n- 0\n"}},
		{"field json", OutputJSON, "question", []string{"\"Lunch?\"\n"}},
		{"field query", OutputText, "options.#(label==\"pizza\").tally", []string{"2\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, p, tt.format, tt.field))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestWriteEmptyAndMissing(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []poll.PollEntry{}, OutputText, ""))
	assert.Equal(t, "(none)\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, poll.VoteResponse{}, OutputText, ""))
	assert.Equal(t, "vote: null\n", buf.String())

	err := Write(&buf, poll.Config{Admin: "alice"}, OutputText, "owner")
	assert.ErrorContains(t, err, "owner")
}
