// Package http implements the RPC transport over HTTP.
//
// The server answers POST /{shardId} with the handler registered by the rpc server and
// exposes all VictoriaMetrics counters of the process on GET /metrics. With log level
// debug every request is logged.
//
// The client spreads requests over all endpoints round-robin and retries transport
// failures on the next endpoint. It is safe for concurrent use.
package http
