package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/discord"
	"github.com/roach88/referral/internal/events"
	"github.com/roach88/referral/internal/httpapi"
	"github.com/roach88/referral/internal/sweep"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen       string
	ReadyTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: gateway, event loop, scheduler and admin API",
		Long: `Connect to the Discord gateway and process member and invite events
one at a time, run the hourly sweep and the weekly token reset, and serve
the admin HTTP API when an address is configured.

The bot token is read from the variable named by discord.token_env
(DISCORD_TOKEN by default). A .env file in the working directory is loaded
first.

Example:
  referral serve --config ./referral.yaml
  referral serve --db ./data/referral.db --listen :8080 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "admin API address (overrides http.listen)")
	cmd.Flags().DurationVar(&opts.ReadyTimeout, "ready-timeout", 30*time.Second, "how long to wait for the gateway READY")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if e.client == nil && opts.Platform == nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeConfig,
			fmt.Sprintf("bot token not set: export %s", e.file.Discord.TokenEnv), nil)
	}
	slog.SetDefault(e.logger)
	logger := e.logger

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop outlives ctx so queued events drain after the gateway closes.
	loop := events.NewLoop(e.app.Dispatcher, logger.With("component", "loop"))
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(context.WithoutCancel(ctx))
	}()
	defer func() {
		loop.Close()
		if err := <-loopDone; err != nil {
			logger.Error("event loop stopped", "error", err)
		}
	}()

	if e.client != nil {
		ready := make(chan []string, 1)
		gw := discord.NewGateway(loop, e.file.Discord.Guilds, logger.With("component", "gateway"))
		gw.OnReady = func(ids []string) {
			select {
			case ready <- ids:
			default:
			}
		}
		remove := gw.Register(e.client.Session())
		defer remove()

		if err := e.client.Open(); err != nil {
			return e.formatter.Fail(ExitCommandError, ErrCodePlatform, "open discord gateway", err)
		}
		select {
		case ids := <-ready:
			if e.app.GuildID == "" && len(ids) > 0 {
				e.app.SetGuild(ids[0])
			}
			if len(ids) > 1 && len(e.file.Discord.Guilds) == 0 {
				logger.Warn("bot is in several guilds; sweeps cover the first", "guild", ids[0], "guilds", len(ids))
			}
		case <-time.After(opts.ReadyTimeout):
			logger.Warn("gateway not ready; continuing", "timeout", opts.ReadyTimeout)
		case <-ctx.Done():
			return nil
		}
	} else if len(e.file.Discord.Guilds) > 0 {
		loop.Submit(events.Event{Kind: events.KindReady, Guilds: e.file.Discord.Guilds})
	}

	loc := e.app.Config.Location(ctx)
	sched, err := sweep.NewScheduler(e.app.Sweeper, e.app.Ledger, e.app.Config, e.app.Platform, loc,
		sweep.ScheduleSpec{Sweep: e.file.Schedule.Sweep, Reset: e.file.Schedule.Reset},
		logger.With("component", "scheduler"))
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeConfig, "schedule", err)
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()
	nextSweep, nextReset := sched.Next(time.Now())
	logger.Info("scheduler started", "timezone", loc.String(), "next_sweep", nextSweep, "next_reset", nextReset)

	httpDone := make(chan error, 1)
	listen := e.file.HTTP.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}
	if listen != "" {
		adminToken := ""
		if e.file.HTTP.AdminTokenEnv != "" {
			adminToken = os.Getenv(e.file.HTTP.AdminTokenEnv)
		}
		if adminToken == "" {
			logger.Warn("admin API has no token; admin routes are open", "addr", listen)
		}
		srv := httpapi.New(e.app, httpapi.Options{AdminToken: adminToken, Gatherer: e.registry})
		go func() {
			httpDone <- srv.ListenAndServe(ctx, listen)
		}()
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Referral bot running. Press Ctrl-C to stop.")

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-httpDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "admin API stopped", err)
		}
	}
	return nil
}
