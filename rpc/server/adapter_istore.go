package server

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTApply:
		res, err := s.Apply(req.Payload)
		return common.NewApplyResponse(res, err)
	case common.MsgTLookup:
		res, err := s.Lookup(req.Payload)
		return common.NewLookupResponse(res, err)
	case common.MsgTDBInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewDBInfoResponse(nil, err)
		}
		data, err := json.Marshal(info)
		return common.NewDBInfoResponse(data, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
