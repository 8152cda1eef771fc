package poll

import (
	"errors"
	"github.com/ValentinKolb/dPoll/cmd/util"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/ValentinKolb/dPoll/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore   store.IStore
	pollClient *poll.Client

	// PollCommands represents the poll command group
	PollCommands = &cobra.Command{
		Use:                "poll",
		Short:              "Create polls, vote and query results",
		Long:               `Send commands and queries to the poll contract of a shard. Commands are sent on behalf of --sender (env DPOLL_SENDER).`,
		PersistentPreRunE:  setupPollClient,
		PersistentPostRunE: closePollClient,
		SilenceUsage:       true,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(PollCommands)
	util.SetupOutputFlags(PollCommands)

	PollCommands.PersistentFlags().String("sender", "", util.WrapString("Identity the commands are sent as (e.g. 'alice')"))

	PollCommands.AddCommand(initCmd)
	PollCommands.AddCommand(createCmd)
	PollCommands.AddCommand(voteCmd)
	PollCommands.AddCommand(deleteCmd)
	PollCommands.AddCommand(revokeCmd)
	PollCommands.AddCommand(listCmd)
	PollCommands.AddCommand(getCmd)
	PollCommands.AddCommand(ballotCmd)
	PollCommands.AddCommand(configCmd)
	PollCommands.AddCommand(votesCmd)
	PollCommands.AddCommand(infoCmd)
	PollCommands.AddCommand(perfCmd)
}

// setupPollClient connects the RPC store and wraps it in a poll client
func setupPollClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if _, err := util.ParseOutputFormat(viper.GetString("output")); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(
		util.GetShardID(),
		*util.GetClientConfig(),
		util.GetTransport(),
		s,
	)
	if err != nil {
		return err
	}

	pollClient = poll.NewClient(rpcStore, viper.GetString("sender"))
	return nil
}

func closePollClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}

// requireSender fails early for commands that need an identity
func requireSender() error {
	if pollClient.Sender() == "" {
		return errors.New("--sender is required for commands")
	}
	return nil
}
