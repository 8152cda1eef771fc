package server

import (
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It translates a request message into calls on the store of a shard.
// Errors must be set in the response, Handle never fails.
type IRPCServerAdapter interface {
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
