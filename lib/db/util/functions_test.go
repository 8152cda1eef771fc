package util

import (
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	// without a seed the hash is plain FNV-1a
	for _, s := range []string{"", "node-1", "node-2", "a much longer replica name"} {
		h := fnv.New64a()
		_, _ = h.Write([]byte(s))
		assert.Equal(t, UintKey(h.Sum64()), HashString(s, 0), s)
	}

	assert.Equal(t, HashString("node-1", 7), HashString("node-1", 7))
	assert.NotEqual(t, HashString("node-1", 0), HashString("node-1", 7))
	assert.NotEqual(t, HashString("node-1", 0), HashString("node-2", 0))
}
