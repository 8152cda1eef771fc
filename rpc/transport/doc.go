// Package transport defines how serialized RPC messages travel between the poll client
// and server. A transport only moves bytes for a shard, it knows nothing about messages.
//
// Key Components:
//
//   - IRPCClientTransport: sends a request to a shard and returns the response.
//
//   - IRPCServerTransport: receives requests and hands them to a ServerHandleFunc.
//
// The only implementation is HTTP (see the http package).
package transport
