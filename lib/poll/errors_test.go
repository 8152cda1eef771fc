package poll

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wire := store.Rejected(fmt.Errorf("%w: details", sentinel))
			err := ParseError(wire)

			assert.ErrorIs(t, err, sentinel)
			assert.Equal(t, sentinel.Error()+": details", err.Error())

			var storeErr *store.Error
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, store.RetCRejected, storeErr.Code)
		})
	}
}

func TestParseErrorKeepsOtherErrors(t *testing.T) {
	assert.Nil(t, ParseError(nil))

	internal := store.NewError(store.RetCInternalError, "poll not found")
	assert.Same(t, internal, ParseError(internal))

	unknown := store.NewError(store.RetCRejected, "something else")
	assert.Same(t, unknown, ParseError(unknown))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, ParseError(plain))
}
