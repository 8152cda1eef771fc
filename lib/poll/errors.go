package poll

import (
	"errors"
	"github.com/ValentinKolb/dPoll/lib/store"
	"strings"
)

// Rejections of the poll contract. A rejected command leaves the state unchanged.
var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrTooManyOptions  = errors.New("too many poll options")
	ErrPollNotFound    = errors.New("poll not found")
	ErrOptionNotFound  = errors.New("option not found in the poll")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotImplemented  = errors.New("not implemented")
	ErrInvalidMessage  = errors.New("invalid message")
)

var sentinels = []error{
	ErrInvalidIdentity,
	ErrTooManyOptions,
	ErrPollNotFound,
	ErrOptionNotFound,
	ErrUnauthorized,
	ErrNotImplemented,
	ErrInvalidMessage,
}

// Rejection is a rejected command as seen by a client. It wraps both the sentinel and the
// *store.Error, so errors.Is and errors.As work for callers of any store.
type Rejection struct {
	Sentinel error
	Store    *store.Error
}

func (r *Rejection) Error() string {
	return r.Store.Msg
}

func (r *Rejection) Unwrap() []error {
	return []error{r.Sentinel, r.Store}
}

// ParseError restores the sentinel of a rejection that crossed a store boundary, where only
// the code and message survive. Other errors are returned unchanged.
func ParseError(err error) error {
	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCRejected {
		return err
	}
	for _, sentinel := range sentinels {
		if strings.HasPrefix(storeErr.Msg, sentinel.Error()) {
			return &Rejection{Sentinel: sentinel, Store: storeErr}
		}
	}
	return err
}
