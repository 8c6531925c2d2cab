package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/config"
)

// NewConfigCommand creates the config command group. It reads and writes
// the stored tunables; the bootstrap file is never modified.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change stored tunables",
		Long: `Tunables resolve from the database first, then from an environment
variable named after the upper-cased key (REQUIRED_ROLE_ID), then from the
built-in default. "config set" writes the database layer; setting an empty
value falls back to the next layer.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show a tunable's effective value and where it came from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a tunable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(rootOpts, args[0], args[1], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show every tunable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(rootOpts, cmd)
		},
	})
	return cmd
}

func unknownKey(f *OutputFormatter, key string) error {
	return f.Fail(ExitCommandError, ErrCodeArgs, fmt.Sprintf("unknown config key %q", key), nil)
}

func runConfigGet(opts *RootOptions, key string, cmd *cobra.Command) error {
	if !config.Known(key) {
		return unknownKey(opts.formatter(cmd), key)
	}
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	v, src := e.app.Config.Lookup(cmd.Context(), key)
	return e.formatter.Success(config.Entry{Key: key, Value: v, Source: src},
		fmt.Sprintf("%s = %q (%s)", key, v, src))
}

func runConfigSet(opts *RootOptions, key, value string, cmd *cobra.Command) error {
	if !config.Known(key) {
		return unknownKey(opts.formatter(cmd), key)
	}
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if err := e.app.Config.Set(ctx, key, value); err != nil {
		return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "store config", err)
	}
	v, src := e.app.Config.Lookup(ctx, key)
	return e.formatter.Success(config.Entry{Key: key, Value: v, Source: src},
		fmt.Sprintf("%s = %q (%s)", key, v, src))
}

func runConfigList(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	entries := e.app.Config.Effective(cmd.Context())
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, en := range entries {
		fmt.Fprintf(tw, "%s\t%q\t%s\n", en.Key, en.Value, en.Source)
	}
	_ = tw.Flush()
	return e.formatter.Success(entries, strings.TrimRight(b.String(), "\n"))
}
