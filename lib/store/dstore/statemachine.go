package dstore

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"io"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// HandlerStateMachine is a state machine implementation for Dragonboat RAFT that runs
// every log entry as one transition of a store.Handler
type HandlerStateMachine struct {
	replicaID uint64
	shardID   uint64
	mu        sync.RWMutex  // Update holds the write lock, Lookup the read lock
	database  db.KVDB       // the actual dataStorage
	handler   store.Handler // the transition logic
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory and handler.
func CreateStateMachineFactory(dbFactory store.DBFactory, handlerFactory store.HandlerFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &HandlerStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
			handler:   handlerFactory(),
		}
	}
}

// Lookup answers read-only queries. Handler rejections are returned inside the
// QueryResult, an error is only returned for malformed queries.
func (fsm *HandlerStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTLookup:
		fsm.mu.RLock()
		defer fsm.mu.RUnlock()

		data, err := fsm.handler.Lookup(store.NewReadOnly(fsm.database), q.Payload)
		if err != nil {
			storeErr := store.Rejected(err)
			return internal.QueryResult{Code: storeErr.Code, Msg: storeErr.Msg}, nil
		}
		return internal.QueryResult{Code: store.RetCSuccess, Data: data}, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update applies committed log entries in order. Every entry is one transition: the
// handler runs on a fresh batch and the batch is committed with the RAFT index as write
// index only if the handler succeeded.
func (fsm *HandlerStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply runs a single entry, the caller holds the write lock
func (fsm *HandlerStateMachine) apply(e sm.Entry) sm.Result {

	// A persistent database may already contain this entry (restart without snapshot)
	if e.Index <= fsm.database.WriteIdx() {
		return sm.Result{Value: uint64(store.RetCSuccess)}
	}

	if len(e.Cmd) == 0 {
		fsm.database.SetWriteIdx(e.Index)
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	// Deserialize the command
	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		fsm.database.SetWriteIdx(e.Index)
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	switch cmd.Type {
	case internal.CommandTApply:
		batch := store.NewBatch(fsm.database)
		data, err := store.ApplyHandler(fsm.handler, batch, cmd.Payload)
		if err != nil {
			storeErr := store.Rejected(err)
			if storeErr.Code == store.RetCInternalError {
				log.Errorf("[%d:%d] request %s failed at index %d: %s", fsm.shardID, fsm.replicaID, cmd.RequestID, e.Index, storeErr.Msg)
			} else {
				log.Debugf("[%d:%d] request %s rejected at index %d: %s", fsm.shardID, fsm.replicaID, cmd.RequestID, e.Index, storeErr.Msg)
			}
			fsm.database.SetWriteIdx(e.Index)
			return sm.Result{Value: uint64(storeErr.Code), Data: []byte(storeErr.Msg)}
		}
		fsm.database.Apply(batch.Ops(), e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: data}
	default:
		fsm.database.SetWriteIdx(e.Index)
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
		}
	}
}

// PrepareSnapshot is not used. The database creates a consistent cut itself while saving.
func (fsm *HandlerStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a db snapshot to the writer
func (fsm *HandlerStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used KVDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot replaces the database state with the snapshot
func (fsm *HandlerStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used KVDB implementation does not support Load() operations")
	}
	fsm.mu.Lock()
	defer fsm.mu.Unlock()
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *HandlerStateMachine) Close() error {
	return fsm.database.Close()
}
