package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/report"
	"github.com/roach88/referral/internal/sweep"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	ForceConfirm bool
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Process pending and holding referrals now",
		Long: `Run one reconciliation sweep: expire overdue pending referrals, start
holds for invitees that gained the required role, and confirm or fail
referrals whose hold elapsed.

With --force-confirm, every holding referral is decided now regardless of
elapsed time. Without a bot token, member lookups fail and the affected
referrals are skipped.

Example:
  referral sweep --db ./data/referral.db
  referral sweep --force-confirm --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ForceConfirm, "force-confirm", false, "decide holding referrals without waiting for the hold period")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sum, err := e.app.Sweep(cmd.Context(), opts.ForceConfirm, sweep.TriggerManual)
	if err != nil {
		return e.formatter.Fail(ExitFailure, ErrCodeGeneric, "sweep failed", err)
	}
	return e.formatter.Success(sum, report.Summary(sum))
}
