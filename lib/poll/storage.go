package poll

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
)

// --------------------------------------------------------------------------
// Keys
// --------------------------------------------------------------------------

// namespace returns the length prefixed name all keys of a Map start with.
// The length prefix keeps namespaces from overlapping ("poll" vs "polls").
func namespace(name string) string {
	buf := make([]byte, 2, 2+len(name))
	binary.BigEndian.PutUint16(buf, uint16(len(name)))
	return string(append(buf, name...))
}

var (
	configItem       = NewItem[Config]("config")
	contractInfoItem = NewItem[ContractInfo]("contract_info")
	polls            = NewMap[string, Poll]("polls", stringKey{})
	ballots          = NewMap[BallotKey, Ballot]("ballots", ballotKeyCodec{})
)

// KeyCodec converts the keys of a Map to store keys and back.
// Encode must preserve the order of keys that Range should return them in.
type KeyCodec[K any] interface {
	Encode(k K) string
	Decode(s string) (K, error)
}

// stringKey uses the string verbatim
type stringKey struct{}

func (stringKey) Encode(k string) string {
	return k
}

func (stringKey) Decode(s string) (string, error) {
	return s, nil
}

// ballotKeyCodec encodes (voter, poll_id) as uint16_be(len(voter)) || voter || poll_id
type ballotKeyCodec struct{}

func (ballotKeyCodec) Encode(k BallotKey) string {
	buf := make([]byte, 2, 2+len(k.Voter)+len(k.PollID))
	binary.BigEndian.PutUint16(buf, uint16(len(k.Voter)))
	buf = append(buf, k.Voter...)
	buf = append(buf, k.PollID...)
	return string(buf)
}

func (ballotKeyCodec) Decode(s string) (BallotKey, error) {
	if len(s) < 2 {
		return BallotKey{}, fmt.Errorf("ballot key too short: %d bytes", len(s))
	}
	n := int(binary.BigEndian.Uint16([]byte(s[:2])))
	if len(s) < 2+n {
		return BallotKey{}, fmt.Errorf("ballot key truncated: voter length %d, %d bytes left", n, len(s)-2)
	}
	return BallotKey{Voter: s[2 : 2+n], PollID: s[2+n:]}, nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// decode and encode failures mean the stored state is unusable, they are never a rejection
func decode[T any](key string, raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, store.NewError(store.RetCInternalError, fmt.Sprintf("decoding %q: %v", key, err))
	}
	return v, nil
}

func encode[T any](key string, v T) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("encoding %q: %v", key, err))
	}
	return raw, nil
}

// --------------------------------------------------------------------------
// Item
// --------------------------------------------------------------------------

// Item is a typed singleton record stored at a fixed key
type Item[T any] struct {
	key string
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: key}
}

// MayLoad returns the record or nil if it does not exist
func (i Item[T]) MayLoad(kv store.KV) (*T, error) {
	raw, ok, err := kv.Get(i.key)
	if err != nil || !ok {
		return nil, err
	}
	v, err := decode[T](i.key, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Load returns the record and fails if it does not exist
func (i Item[T]) Load(kv store.KV) (T, error) {
	v, err := i.MayLoad(kv)
	if err != nil {
		var zero T
		return zero, err
	}
	if v == nil {
		var zero T
		return zero, store.NewError(store.RetCInternalError, fmt.Sprintf("%q not found", i.key))
	}
	return *v, nil
}

func (i Item[T]) Save(kv store.KV, v T) error {
	raw, err := encode(i.key, v)
	if err != nil {
		return err
	}
	return kv.Set(i.key, raw)
}

// --------------------------------------------------------------------------
// Map
// --------------------------------------------------------------------------

// Map is a typed collection of records below a namespace
type Map[K any, T any] struct {
	prefix string
	codec  KeyCodec[K]
}

func NewMap[K any, T any](name string, codec KeyCodec[K]) Map[K, T] {
	return Map[K, T]{prefix: namespace(name), codec: codec}
}

func (m Map[K, T]) key(k K) string {
	return m.prefix + m.codec.Encode(k)
}

// MayLoad returns the record for k or nil if it does not exist
func (m Map[K, T]) MayLoad(kv store.KV, k K) (*T, error) {
	key := m.key(k)
	raw, ok, err := kv.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	v, err := decode[T](key, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (m Map[K, T]) Save(kv store.KV, k K, v T) error {
	key := m.key(k)
	raw, err := encode(key, v)
	if err != nil {
		return err
	}
	return kv.Set(key, raw)
}

// Update loads the record for k (nil if absent), passes it to fn and saves the result.
// If fn fails nothing is saved.
func (m Map[K, T]) Update(kv store.KV, k K, fn func(old *T) (T, error)) (T, error) {
	old, err := m.MayLoad(kv, k)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(old)
	if err != nil {
		var zero T
		return zero, err
	}
	return v, m.Save(kv, k, v)
}

// Range calls fn for every record in ascending key order until fn returns false
func (m Map[K, T]) Range(kv store.KV, fn func(k K, v T) bool) error {
	start, end := store.PrefixRange(m.prefix)

	var iterErr error
	err := kv.Range(start, end, func(key string, raw []byte) bool {
		k, err := m.codec.Decode(key[len(m.prefix):])
		if err != nil {
			iterErr = store.NewError(store.RetCInternalError, fmt.Sprintf("decoding key %q: %v", key, err))
			return false
		}
		v, err := decode[T](key, raw)
		if err != nil {
			iterErr = err
			return false
		}
		return fn(k, v)
	})
	if err != nil {
		return err
	}
	return iterErr
}
