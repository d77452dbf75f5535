package db

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dotKV/cmd/util"
	"github.com/ValentinKolb/dotKV/lib/client"
	"github.com/ValentinKolb/dotKV/lib/database"
	"github.com/ValentinKolb/dotKV/lib/store"
	rpcClient "github.com/ValentinKolb/dotKV/rpc/client"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	conn *client.Client
	db   *database.Database

	// DatabaseCommands represents the database command group
	DatabaseCommands = &cobra.Command{
		Use:   "db",
		Short: "Perform database operations on dot-path keys",
		Long: `Perform database operations on dot-path keys (e.g. 'users.alice.age').
Values are parsed as JSON, arguments that are not valid JSON are used as strings.`,
		PersistentPreRunE:  setupDatabase,
		PersistentPostRunE: closeDatabase,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the database command
	util.SetupRPCClientFlags(DatabaseCommands)

	key := "backend"
	DatabaseCommands.PersistentFlags().String(key, "rpc", util.WrapString("Where the collection lives: rpc (a dotKV server) or a local sqlite, pogreb or memory backend"))

	key = "data-dir"
	DatabaseCommands.PersistentFlags().String(key, "data", util.WrapString("Data directory of the local sqlite or pogreb backend"))

	key = "database"
	DatabaseCommands.PersistentFlags().String(key, "default", util.WrapString("Name of the database"))

	key = "collection"
	DatabaseCommands.PersistentFlags().String(key, "", util.WrapString("Name of the collection holding the documents (defaults to the database name)"))

	key = "seed"
	DatabaseCommands.PersistentFlags().String(key, "", util.WrapString("Optional .json or .toml file with the initial data of an empty collection"))

	// Add subcommands
	DatabaseCommands.AddCommand(getCmd)
	DatabaseCommands.AddCommand(setCmd)
	DatabaseCommands.AddCommand(deleteCmd)
	DatabaseCommands.AddCommand(hasCmd)
	DatabaseCommands.AddCommand(addCmd)
	DatabaseCommands.AddCommand(subtractCmd)
	DatabaseCommands.AddCommand(pushCmd)
	DatabaseCommands.AddCommand(pullCmd)
	DatabaseCommands.AddCommand(popCmd)
	DatabaseCommands.AddCommand(keysCmd)
	DatabaseCommands.AddCommand(valuesCmd)
	DatabaseCommands.AddCommand(allCmd)
	DatabaseCommands.AddCommand(rawCmd)
	DatabaseCommands.AddCommand(clearCmd)
	DatabaseCommands.AddCommand(randomCmd)
	DatabaseCommands.AddCommand(pingCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupDatabase opens the backend, connects the client and loads the database
func setupDatabase(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	backend, err := openBackend()
	if err != nil {
		return err
	}

	seed, err := util.LoadSeed(viper.GetString("seed"))
	if err != nil {
		_ = backend.Close()
		return err
	}

	conn, err = client.New(backend, client.Options{InitialData: seed})
	if err != nil {
		_ = backend.Close()
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := conn.Connect(ctx); err != nil {
		_ = backend.Close()
		return err
	}

	db, err = database.New(ctx, conn, database.Options{
		Name:       viper.GetString("database"),
		Collection: viper.GetString("collection"),
	})
	if err != nil {
		_ = conn.Disconnect(ctx)
		return err
	}
	return nil
}

// closeDatabase disconnects the client, which also closes the backend
func closeDatabase(cmd *cobra.Command, _ []string) error {
	if conn == nil {
		return nil
	}
	return conn.Disconnect(cmd.Context())
}

// openBackend creates the backend selected by the --backend flag
func openBackend() (store.IBackend, error) {
	kind := viper.GetString("backend")
	if kind == "rpc" {
		s, err := util.GetSerializer()
		if err != nil {
			return nil, err
		}
		t, err := util.GetClientTransport()
		if err != nil {
			return nil, err
		}
		return rpcClient.NewRPCBackend(*util.GetClientConfig(), t, s)
	}

	backend, err := common.ParseBackendType(kind)
	if err != nil {
		return nil, err
	}
	if backend == common.BackendRaft {
		return nil, fmt.Errorf("the raft backend can only be used by 'dotkv serve', use --backend rpc to talk to a raft server")
	}
	return server.OpenBackend(common.ServerConfig{
		Backend: backend,
		DataDir: viper.GetString("data-dir"),
	})
}
