package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/db"
	"github.com/ValentinKolb/dPoll/lib/db/engines/leveldb"
	"github.com/ValentinKolb/dPoll/lib/db/engines/maple"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/lib/store/dstore"
	"github.com/ValentinKolb/dPoll/lib/store/lstore"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/ValentinKolb/dPoll/rpc/serializer"
	"github.com/ValentinKolb/dPoll/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a shard of the RPC server: the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer hosts one poll contract per configured shard and serves them over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	handlers   store.HandlerFactory
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
}

// NewRPCServer creates a new RPC server. Every shard runs its own handler created by
// handlers, the handler decides what a shard does (e.g. poll.NewHandler).
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//		func() store.Handler { return poll.NewHandler(poll.DefaultApi()) },
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	handlers store.HandlerFactory,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		handlers:   handlers,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// Handle answers one serialized request for a shard with a serialized response
func (s *RPCServer) Handle(shardId uint64, req []byte) []byte {
	var respMsg *common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else {
		var msg common.Message
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = shard.Adapter.Handle(&msg, shard.Store)
		}
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response for shard %d: %v", shardId, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

// dbFactory returns the factory of the configured engine for a shard. Failing to open a
// leveldb panics, dragonboat gives state machine factories no way to return an error.
func (s *RPCServer) dbFactory(shardId uint64) store.DBFactory {
	switch s.config.Engine {
	case common.EngineLevelDB:
		path := s.config.ShardDir(shardId)
		return func() db.KVDB {
			database, err := leveldb.NewLevelDB(path)
			if err != nil {
				Logger.Panicf("failed to open leveldb for shard %d: %v", shardId, err)
			}
			return database
		}
	default:
		return func() db.KVDB { return maple.NewMapleDB(nil) }
	}
}

func (s *RPCServer) init() error {
	if s.config.HasDistributedShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for _, shardConfig := range s.config.Shards {
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return fmt.Errorf("shard %d configured twice", shardConfig.ShardID)
		}

		var shardStore store.IStore
		switch shardConfig.Type {
		case common.ShardTypeLocal:
			shardStore = lstore.NewLocalStore(s.dbFactory(shardConfig.ShardID), s.handlers())
		case common.ShardTypeDistributed:
			factory := dstore.CreateStateMachineFactory(s.dbFactory(shardConfig.ShardID), s.handlers)
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, factory, s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			shardStore = dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout)
		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   shardStore,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created %s shard %d (%s)", shardConfig.Type, shardConfig.ShardID, s.config.Engine)
	}

	s.transport.RegisterHandler(s.Handle)
	Logger.Infof("dPoll setup completed successfully")
	return nil
}

// Serve initializes the shards and starts the transport layer.
// It blocks until Close is called or the transport fails.
func (s *RPCServer) Serve() error {
	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	if err := s.init(); err != nil {
		return errors.Join(err, s.closeShards())
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and closes all shards
func (s *RPCServer) Close() error {
	return errors.Join(s.transport.Close(), s.closeShards())
}

func (s *RPCServer) closeShards() error {
	var errs []error
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if err := shard.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
		s.shards.Delete(id)
		return true
	})
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	return errors.Join(errs...)
}
