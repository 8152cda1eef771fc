package lstore

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var log = logger.GetLogger("store")

type storeImpl struct {
	mu      sync.RWMutex // write lock per transition, read lock per lookup
	db      db.KVDB
	handler store.Handler
	index   uint64 // guarded by mu
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// The write index continues from the index stored in the database, so persistent
// engines can be reopened.
func NewLocalStore(factory store.DBFactory, handler store.Handler) store.IStore {
	database := factory()
	return &storeImpl{
		db:      database,
		handler: handler,
		index:   database.WriteIdx(),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Apply(cmd []byte) ([]byte, error) {
	if !s.db.SupportsFeature(db.FeatureApply | db.FeatureGet | db.FeatureRange) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "database does not support transitions")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := store.NewBatch(s.db)
	result, err := store.ApplyHandler(s.handler, batch, cmd)
	if err != nil {
		storeErr := store.Rejected(err)
		if storeErr.Code == store.RetCInternalError {
			log.Errorf("transition failed: %s", storeErr.Msg)
		} else {
			log.Debugf("transition rejected: %s", storeErr.Msg)
		}
		return nil, storeErr
	}

	s.index++
	s.db.Apply(batch.Ops(), s.index)
	return result, nil
}

func (s *storeImpl) Lookup(query []byte) ([]byte, error) {
	if !s.db.SupportsFeature(db.FeatureGet | db.FeatureRange) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "database does not support lookups")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result, err := s.handler.Lookup(store.NewReadOnly(s.db), query)
	if err != nil {
		return nil, store.Rejected(err)
	}
	return result, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	if err := s.db.Close(); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("closing database: %v", err))
	}
	return nil
}
