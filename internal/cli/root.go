package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/platform"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides database.dsn
	Driver     string // overrides database.driver
	EnvFile    string

	// Platform and Clock override the live Discord client and wall clock
	// (for testing).
	Platform platform.Platform
	Clock    clock.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the referral CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Invite referral tracking for Discord communities",
		Long: `Referral attributes guild joins to personal invite links, spends and
refunds weekly invite tokens, and confirms referrals once the invitee holds
the required role for the hold period.

Run "referral serve" for the bot. The other commands are staff tools that
work on the same database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.EnvFile != "" {
				if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return WrapExitError(ExitCommandError, "load env file", err)
				}
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "bootstrap config file (YAML)")
	flags.StringVar(&opts.Database, "db", "", "database DSN or SQLite path (overrides the config file)")
	flags.StringVar(&opts.Driver, "driver", "", "database driver: sqlite3 or postgres (overrides the config file)")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before running; missing is fine")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewTokensCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewSetHoldCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewWhoInvitedCommand(opts))
	cmd.AddCommand(NewInvitedCommand(opts))
	cmd.AddCommand(NewHoldingCommand(opts))
	cmd.AddCommand(NewFailCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}
