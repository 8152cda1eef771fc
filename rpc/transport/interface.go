package transport

import (
	"github.com/ValentinKolb/dPoll/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc answers one serialized request addressed to a shard.
// It never fails, errors are encoded in the response message.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport receives requests and routes them to the registered handler
type IRPCServerTransport interface {
	// RegisterHandler sets the handler, it must be called before Listen
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves on config.Endpoint and blocks until Close is called or serving fails
	Listen(config common.ServerConfig) error
	// Close stops listening, Listen returns nil afterwards
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport sends serialized requests to a server. Implementations are safe
// for concurrent use once connected.
type IRPCClientTransport interface {
	// Connect prepares the transport for the endpoints of config
	Connect(config common.ClientConfig) error
	// Send delivers req to a shard and returns the serialized response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close releases idle connections
	Close() error
}
