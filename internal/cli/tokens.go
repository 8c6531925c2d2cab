package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/platform"
)

// NewTokensCommand creates the tokens command group.
func NewTokensCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and adjust invite tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <user>",
		Short: "Show a member's token balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokensShow(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "grant <user> <delta>",
		Short: "Add or remove tokens; the balance never drops below zero",
		Example: `  referral tokens grant 123456789 3
  referral tokens grant 123456789 -- -2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokensGrant(rootOpts, args[0], args[1], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset every balance to the weekly quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokensReset(rootOpts, cmd)
		},
	})
	return cmd
}

type tokensResult struct {
	MemberID   string `json:"member_id"`
	TokensLeft int    `json:"tokens_left"`
}

func runTokensShow(opts *RootOptions, user string, cmd *cobra.Command) error {
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	left, err := e.app.Ledger.Balance(cmd.Context(), user)
	if err != nil {
		return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "read balance", err)
	}
	return e.formatter.Success(tokensResult{MemberID: user, TokensLeft: left},
		fmt.Sprintf("%s has %d tokens.", platform.Mention(user), left))
}

func runTokensGrant(opts *RootOptions, user, rawDelta string, cmd *cobra.Command) error {
	delta, err := strconv.Atoi(rawDelta)
	if err != nil {
		return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeArgs, fmt.Sprintf("invalid delta %q", rawDelta), err)
	}
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	left, err := e.app.GrantTokens(cmd.Context(), user, delta)
	if err != nil {
		return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "grant tokens", err)
	}
	return e.formatter.Success(tokensResult{MemberID: user, TokensLeft: left},
		fmt.Sprintf("Assigned %d tokens to %s. Tokens left: %d", delta, platform.Mention(user), left))
}

func runTokensReset(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.app.ResetTokens(cmd.Context())
	if err != nil {
		return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "reset tokens", err)
	}
	return e.formatter.Success(map[string]int64{"balances": n}, "Weekly token reset executed.")
}
