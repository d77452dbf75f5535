package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dotKV/cmd/db"
	"github.com/ValentinKolb/dotKV/cmd/serve"
	"github.com/ValentinKolb/dotKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dotkv",
		Short: "dot-path key-value database",
		Long: fmt.Sprintf(`dotKV (v%s)

A key-value database addressed by dot-separated paths (e.g. 'users.alice.age').
Every top-level key is persisted as one document, reads are served from an
in-memory mirror of the collection.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dotKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dotKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(db.DatabaseCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use for rpc messages (json, gob, binary)"))

	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use for rpc messages (http, tcp, unix). Client and server must use the same transport and serializer"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
