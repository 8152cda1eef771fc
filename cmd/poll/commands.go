package poll

import (
	"github.com/ValentinKolb/dPoll/cmd/util"
	"github.com/spf13/cobra"
)

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

var (
	initCmd = &cobra.Command{
		Use:     "init",
		Short:   "Instantiates the poll contract, re-instantiating is only allowed for the admin",
		Args:    cobra.NoArgs,
		PreRunE: senderRequired,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, _ := cmd.Flags().GetString("admin")
			res, err := pollClient.Instantiate(admin)
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), res)
		},
	}
	createCmd = &cobra.Command{
		Use:     "create [poll-id] [question] [options...]",
		Short:   "Creates a poll (or replaces the poll with the same id)",
		Args:    cobra.MinimumNArgs(2),
		PreRunE: senderRequired,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := pollClient.CreatePoll(args[0], args[1], args[2:]...)
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), res)
		},
	}
	voteCmd = &cobra.Command{
		Use:     "vote [poll-id] [option]",
		Short:   "Casts or changes the ballot of the sender",
		Args:    cobra.ExactArgs(2),
		PreRunE: senderRequired,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := pollClient.Vote(args[0], args[1])
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), res)
		},
	}
	deleteCmd = &cobra.Command{
		Use:     "delete [poll-id]",
		Short:   "Deletes a poll (not supported by the contract yet)",
		Args:    cobra.ExactArgs(1),
		PreRunE: senderRequired,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := pollClient.DeletePoll(args[0])
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), res)
		},
	}
	revokeCmd = &cobra.Command{
		Use:     "revoke [poll-id] [option]",
		Short:   "Revokes the ballot of the sender (not supported by the contract yet)",
		Args:    cobra.ExactArgs(2),
		PreRunE: senderRequired,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := pollClient.RevokeVote(args[0], args[1])
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), res)
		},
	}
)

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all polls ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			polls, err := pollClient.AllPolls()
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), polls)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [poll-id]",
		Short: "Shows a poll with the tally of every option (null if it does not exist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pollClient.Poll(args[0])
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), p)
		},
	}
	ballotCmd = &cobra.Command{
		Use:   "ballot [address] [poll-id]",
		Short: "Shows the option a voter chose in a poll (null if they did not vote)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := pollClient.Ballot(args[0], args[1])
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), b)
		},
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Shows the contract configuration (not supported by the contract yet)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := pollClient.ConfigUser()
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), c)
		},
	}
	votesCmd = &cobra.Command{
		Use:   "votes [address]",
		Short: "Shows all ballots of a voter (not supported by the contract yet)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := pollClient.AllVoteUser(args[0])
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), v)
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Shows metadata of the database behind the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			return util.Print(cmd.OutOrStdout(), info)
		},
	}
)

func init() {
	initCmd.Flags().String("admin", "", util.WrapString("Admin of the contract, defaults to the sender"))
}

func senderRequired(_ *cobra.Command, _ []string) error {
	return requireSender()
}
