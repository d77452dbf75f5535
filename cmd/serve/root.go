package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dotKV/cmd/util"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dotKV server",
		Long:    `Start the dotKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DOTKV_<flag> (e.g. DOTKV_DATA_DIR=/var/lib/dotkv)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "backend"
	ServeCmd.PersistentFlags().String(key, "memory", cmdUtil.WrapString("Storage backend hosting the collections (memory, sqlite, pogreb, raft)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory used by the sqlite, pogreb and raft backends"))

	key = "shard"
	ServeCmd.PersistentFlags().Uint64(key, 100, cmdUtil.WrapString("(raft) ID of the raft shard holding the collections"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(raft) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(raft) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(raft) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(raft) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(raft) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "sync-interval"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("(pogreb) Interval in seconds at which the data is synced to disk in the background (0 syncs only on shutdown)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds of a single store operation"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "cors-origins"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(http) Comma-separated list of origins allowed to call the API from a browser (empty disables CORS)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(tcp, unix) Address of the http server exposing /metrics (e.g. localhost:9090). The http transport serves the metrics next to the API"))

	key = "transport-workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("(tcp, unix) Number of requests of one connection handled concurrently"))

	key = "transport-buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(tcp, unix) Size of the pooled read buffers in KB (0 uses the transport default)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	backend, err := common.ParseBackendType(viper.GetString("backend"))
	if err != nil {
		return err
	}
	serveCmdConfig.Backend = backend

	if _, err := common.ParseLogLevel(viper.GetString("log-level")); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.ShardID = viper.GetUint64("shard")
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.SyncIntervalSecond = viper.GetInt64("sync-interval")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	serveCmdConfig.CORSOrigins = nil
	for _, origin := range strings.Split(viper.GetString("cors-origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			serveCmdConfig.CORSOrigins = append(serveCmdConfig.CORSOrigins, origin)
		}
	}

	// the remaining settings are only needed for the raft backend
	if backend != common.BackendRaft {
		return nil
	}

	// parse replica id
	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("replica-id is required for the raft backend")
	}
	if serveCmdConfig.ReplicaID, err = cmdUtil.ReplicaID(id); err != nil {
		return err
	}

	// parse cluster members
	clusterMembers := viper.GetString("cluster-members")
	if clusterMembers == "" {
		return fmt.Errorf("cluster-members is required for the raft backend")
	}
	if serveCmdConfig.ClusterMembers, err = cmdUtil.ParseClusterMembers(clusterMembers); err != nil {
		return err
	}

	// test if the replica id is in the cluster members
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica %s in cluster members", id)
	}

	return nil
}

// run starts the dotKV server and blocks until it receives SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve(ctx)
}
