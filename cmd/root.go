package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/cmd/poll"
	"github.com/ValentinKolb/dPoll/cmd/serve"
	"github.com/ValentinKolb/dPoll/cmd/util"
	contract "github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dpoll",
		Short: "replicated poll contract",
		Long: fmt.Sprintf(`dPoll (v%s)

A poll and voting contract served over HTTP. Every shard hosts one contract
whose state lives in a local store or is replicated with RAFT.`, Version),
		SilenceErrors: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dPoll",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dPoll v%s (contract %s %s)\n", Version, contract.ContractName, contract.ContractVersion)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(poll.PollCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer of the rpc messages (binary, json, gob), client and server must match"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		util.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
