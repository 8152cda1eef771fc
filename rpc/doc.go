// Package rpc serves poll contracts over the network.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, server and client configuration and logging.
//
//   - transport: moves serialized messages between client and server (HTTP).
//
//   - serializer: converts messages to bytes (Binary, JSON, GOB).
//
//   - client: a store.IStore that forwards Apply, Lookup and GetDBInfo to a remote shard.
//
//   - server: hosts one store per shard and answers requests for it.
package rpc
