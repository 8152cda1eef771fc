package client

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/ValentinKolb/dPoll/rpc/serializer"
	"github.com/ValentinKolb/dPoll/rpc/transport"
)

// NewRPCStore creates a store.IStore that forwards every call to a shard of an RPC server.
// The transport is connected here and closed by Close.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcStore) Apply(cmd []byte) ([]byte, error) {
	resp, err := s.invokeRPCRequest(common.NewApplyRequest(cmd))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (s *rpcStore) Lookup(query []byte) ([]byte, error) {
	resp, err := s.invokeRPCRequest(common.NewLookupRequest(query))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (s *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := s.invokeRPCRequest(common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Payload, &info); err != nil {
		return db.DatabaseInfo{}, store.NewError(store.RetCInternalError, fmt.Sprintf("decoding db info: %v", err))
	}
	return info, nil
}

func (s *rpcStore) Close() error {
	return s.transport.Close()
}
