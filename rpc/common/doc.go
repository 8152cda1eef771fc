// Package common provides the data structures shared by the RPC server and client
// of the poll service.
//
// Key Components:
//
//   - Message: the single request/response structure of all RPC calls. A request
//     carries an encoded poll command or query as payload, a response carries the
//     result or the store error (code and message).
//
//   - MessageType: the operations of a store.IStore (apply, lookup, dbinfo) plus
//     success and error.
//
//   - ServerConfig: shards, storage engine, RAFT parameters and the HTTP endpoint.
//     Provides the conversion to Dragonboat configurations.
//
//   - ClientConfig: endpoints, timeouts and retries of the client.
//
//   - Logger: a logger factory for Dragonboat's logger package, used by every
//     package of this module.
package common
