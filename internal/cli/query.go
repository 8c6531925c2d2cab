package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/report"
	"github.com/roach88/referral/internal/store"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Show an inviter's tokens and referral counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.app.Stats(cmd.Context(), args[0])
			if err != nil {
				return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "read stats", err)
			}
			return e.formatter.Success(st, report.Stats(st))
		},
	}
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank inviters by confirmed referrals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := model.ParsePeriod(period)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(ExitCommandError, ErrCodeArgs, err.Error(), nil)
			}
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			entries, err := e.app.Leaderboard(cmd.Context(), p)
			if err != nil {
				return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "read leaderboard", err)
			}
			return e.formatter.Success(entries, report.Leaderboard(p, entries))
		},
	}
	cmd.Flags().StringVar(&period, "period", string(model.PeriodAll), "week, month or all")
	return cmd
}

// NewWhoInvitedCommand creates the who-invited command.
func NewWhoInvitedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "who-invited <user>",
		Short: "Show the most recent referral of an invitee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			ref, err := e.app.Store.LatestByInvitee(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return e.formatter.Fail(ExitFailure, ErrCodeNotFound, report.NoReferral, nil)
			}
			if err != nil {
				return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "read referral", err)
			}
			return e.formatter.Success(ref, report.New(e.app.Config.Location(ctx)).WhoInvited(ref))
		},
	}
}

// InvitedOptions holds flags for the invited command.
type InvitedOptions struct {
	*RootOptions
	Status string
	Limit  int
}

// NewInvitedCommand creates the invited command.
func NewInvitedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvitedOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "invited <user>",
		Short: "List the referrals of an inviter, newest first",
		Example: `  referral invited 123456789 --status holding
  referral invited 123456789 --limit 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvited(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "all", "pending, holding, confirmed, failed or all")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultListLimit,
		fmt.Sprintf("maximum rows, clamped to 1..%d", store.MaxListLimit))
	return cmd
}

func runInvited(opts *InvitedOptions, inviter string, cmd *cobra.Command) error {
	status, err := model.ParseStatusFilter(opts.Status)
	if err != nil {
		return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeArgs, err.Error(), nil)
	}
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	limit := store.ClampLimit(opts.Limit)
	refs, err := e.app.Store.ByInviter(ctx, inviter, status, limit)
	if err != nil {
		return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "list referrals", err)
	}
	if refs == nil {
		refs = []model.Referral{}
	}
	return e.formatter.Success(refs, report.New(e.app.Config.Location(ctx)).InvitedList(inviter, status, limit, refs))
}

// NewHoldingCommand creates the holding command.
func NewHoldingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "holding",
		Short: "List referrals in the hold period with the time remaining",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			refs, err := e.app.Store.Holding(ctx)
			if err != nil {
				return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "list holding", err)
			}
			if refs == nil {
				refs = []model.Referral{}
			}
			holdDays := e.app.Config.Int(ctx, config.KeyConfirmHoldDays)
			chunks := report.New(e.app.Config.Location(ctx)).HoldingList(refs, e.app.Clock.Now(), holdDays)
			return e.formatter.Success(refs, strings.Join(chunks, "\n"))
		},
	}
}
