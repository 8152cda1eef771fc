// Package server implements the RPC server of the poll service.
//
// A server hosts any number of shards. Each shard is an independent store running its
// own handler, either on a single node (lstore) or replicated with RAFT (dstore). All
// shards of a server use the same storage engine (maple or leveldb).
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocal},
//	    {ShardID: 200, Type: common.ShardTypeDistributed},
//	  },
//	  Engine:         common.EngineLevelDB,
//	  DataDir:        "/var/lib/dpoll",
//	  ReplicaID:      1,
//	  ClusterMembers: map[uint64]string{1: "node1:63001"},
//	  RTTMillisecond: 100,
//	  Endpoint:       "0.0.0.0:8080",
//	  TimeoutSecond:  5,
//	  LogLevel:       "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewBinarySerializer(),
//	  func() store.Handler { return poll.NewHandler(poll.DefaultApi()) })
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Distributed shards need the RAFT parameters (RTTMillisecond, SnapshotEntries,
// CompactionOverhead, DataDir, ReplicaID and ClusterMembers).
//
// Thread Safety:
//
//	Requests are handled concurrently. Serve must be called only once.
package server
