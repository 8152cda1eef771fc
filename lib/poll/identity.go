package poll

import "fmt"

// Api is the validation facility of the host
type Api interface {
	// AddrValidate returns the canonical form of addr or an error wrapping ErrInvalidIdentity
	AddrValidate(addr string) (string, error)
}

const (
	minAddrLen = 3
	maxAddrLen = 90
)

type defaultApi struct{}

// DefaultApi accepts identities of 3 to 90 characters out of [a-z0-9._-] that start with a
// letter or a digit. Identities are not normalized, "Alice" is rejected instead of lowered.
func DefaultApi() Api {
	return defaultApi{}
}

func (defaultApi) AddrValidate(addr string) (string, error) {
	if len(addr) < minAddrLen || len(addr) > maxAddrLen {
		return "", fmt.Errorf("%w: %q must be %d to %d characters long", ErrInvalidIdentity, addr, minAddrLen, maxAddrLen)
	}
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case (c == '.' || c == '_' || c == '-') && i > 0:
		default:
			return "", fmt.Errorf("%w: %q has invalid character %q at %d", ErrInvalidIdentity, addr, c, i)
		}
	}
	return addr, nil
}
