package serve

import (
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dPoll/cmd/util"
	"github.com/ValentinKolb/dPoll/lib/db/util"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/ValentinKolb/dPoll/rpc/server"
	"github.com/ValentinKolb/dPoll/rpc/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dPoll server",
		Long:    `Start the dPoll server with the specified configuration. Every shard hosts an independent poll contract. The configuration can be set via command line flags or environment variables. The format of the environment variables is DPOLL_<flag> (e.g. DPOLL_DATA_DIR=/var/lib/dpoll)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=lstore", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: lstore (single node), dstore (RAFT replicated)"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, string(common.EngineMaple), cmdUtil.WrapString("Storage engine of all shards: maple (in memory) or leveldb (persisted below data-dir)"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Election and heartbeat timing is derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(dstore) SnapshotEntries defines after how many applied Raft log entries the state machine is snapshotted. 0 disables automatic snapshots (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of log entries retained after a snapshot. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory of the RAFT log, the snapshots and the leveldb shards"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique name of this node (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) Comma-separated list of all nodes in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(dstore) Timeout of a proposal or read in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the HTTP api will listen"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	shards, err := parseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	if serveCmdConfig.Engine, err = common.ParseStorageEngine(viper.GetString("engine")); err != nil {
		return err
	}

	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	return parseCluster(serveCmdConfig, viper.GetString("replica-id"), viper.GetString("cluster-members"))
}

// parseShards parses a list like "100=lstore,200=dstore"
func parseShards(s string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	for _, shardConfig := range strings.Split(s, ",") {
		if strings.TrimSpace(shardConfig) == "" {
			continue
		}
		id, kind, ok := strings.Cut(shardConfig, "=")
		if !ok {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %w", id, err)
		}
		shardType, err := common.ParseShardType(strings.TrimSpace(kind))
		if err != nil {
			return nil, err
		}

		shards = append(shards, common.ServerShard{ShardID: shardID, Type: shardType})
	}
	if len(shards) == 0 {
		return nil, errors.New("at least one shard is required")
	}
	return shards, nil
}

// parseCluster hashes the node names into RAFT replica ids. Only required for dstore shards.
func parseCluster(c *common.ServerConfig, replicaID, members string) error {
	if replicaID != "" {
		c.ReplicaID = uint64(util.HashString(replicaID, 0))
	} else if c.HasDistributedShard() {
		return errors.New("replica-id is required for dstore shards")
	}

	if members != "" {
		c.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(members, ",") {
			name, addr, ok := strings.Cut(member, "=")
			if !ok {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			c.ClusterMembers[uint64(util.HashString(strings.TrimSpace(name), 0))] = strings.TrimSpace(addr)
		}
	} else if c.HasDistributedShard() {
		return errors.New("cluster-members is required for dstore shards")
	}

	if _, ok := c.ClusterMembers[c.ReplicaID]; !ok && c.HasDistributedShard() {
		return fmt.Errorf("no address found for replica %q in cluster members", replicaID)
	}
	return nil
}

// run starts the server and closes it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		http.NewHttpServerTransport(),
		s,
		func() store.Handler { return poll.NewHandler(poll.DefaultApi()) },
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	done := make(chan error, 1)
	go func() { done <- serv.Serve() }()

	select {
	case err := <-done:
		return errors.Join(err, serv.Close())
	case <-sig:
		server.Logger.Infof("shutting down")
		if err := serv.Close(); err != nil {
			return err
		}
		return <-done
	}
}
