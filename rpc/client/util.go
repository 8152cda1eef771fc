package client

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/ValentinKolb/dPoll/rpc/serializer"
	"github.com/ValentinKolb/dPoll/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores all data needed to talk to one shard
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest sends req to the shard and returns the response.
// Transport and encoding failures become RetCInternalError, error responses keep the
// code the server sent, so a rejected transition is still RetCRejected for the caller.
func (a *rpcClientAdapter) invokeRPCRequest(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC client - serialize: %v", err))
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC client - send: %v", err))
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("RPC client - deserialize: %v", err))
	}

	if err := resp.AsError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("RPC client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}
	return resp, nil
}
