// Package client implements store.IStore on top of the RPC transport, so a poll.Client
// can talk to a remote shard exactly like to a local store.
//
// Errors keep the store code the server sent. A rejected command arrives as a
// *store.Error with RetCRejected and the message of the poll sentinel, which
// poll.ParseError turns back into the sentinel.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:8080"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 4,
//	}
//
//	s, err := client.NewRPCStore(100, config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	polls := poll.NewClient(s, "alice")
//	_, err = polls.Vote("lunch", "pizza")
//
// Thread Safety:
//
//	The store is safe for concurrent use.
package client
