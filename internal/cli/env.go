package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/app"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/discord"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/notify"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/store"
)

// env is what a command runs against.
type env struct {
	file      config.File
	store     *store.Store
	app       *app.App
	registry  *prometheus.Registry
	client    *discord.Client // nil when offline or overridden
	logger    *slog.Logger
	formatter *OutputFormatter
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// newLogger logs to w at Info, or Debug with --verbose.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadFile reads --config, or returns the defaults, then applies the
// --driver and --db overrides.
func (o *RootOptions) loadFile() (config.File, error) {
	f := config.DefaultFile()
	if o.ConfigPath != "" {
		var err error
		if f, err = config.LoadFile(o.ConfigPath); err != nil {
			return config.File{}, err
		}
	}
	if o.Driver != "" {
		f.Database.Driver = o.Driver
	}
	if o.Database != "" {
		f.Database.DSN = o.Database
	}
	switch f.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return config.File{}, fmt.Errorf("database driver %q: must be sqlite3 or postgres", f.Database.Driver)
	}
	return f, nil
}

// open loads configuration, opens the store and wires the core. Staff
// commands talk to Discord over REST when the bot token is set and run
// offline otherwise.
func (o *RootOptions) open(cmd *cobra.Command) (*env, error) {
	e := &env{
		formatter: o.formatter(cmd),
		logger:    o.newLogger(cmd.ErrOrStderr()),
	}
	f := e.formatter

	file, err := o.loadFile()
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	e.file = file

	if file.Database.Driver == store.DriverSQLite {
		if dir := filepath.Dir(file.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "create database directory", err)
			}
		}
	}
	f.VerboseLog("opening %s database %s", file.Database.Driver, file.Database.DSN)
	st, err := store.OpenDriver(file.Database.Driver, file.Database.DSN)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "open database", err)
	}
	e.store = st

	p, err := e.platform(o.Platform)
	if err != nil {
		_ = st.Close()
		return nil, f.Fail(ExitCommandError, ErrCodePlatform, "connect to discord", err)
	}

	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.app = app.New(app.Options{
		Store:    st,
		Config:   config.NewResolver(st, config.WithLogger(e.logger.With("component", "config"))),
		Platform: p,
		GuildID:  firstGuild(file),
		Clock:    o.Clock,
		Metrics:  metrics.New(e.registry),
		Logger:   e.logger,
	})
	return e, nil
}

// platform builds the Discord client with the Telegram mirror. override,
// when set, replaces the client. Without a bot token the platform is
// offline.
func (e *env) platform(override platform.Platform) (platform.Platform, error) {
	var base platform.Platform = override
	if base == nil {
		token := os.Getenv(e.file.Discord.TokenEnv)
		if token == "" {
			e.logger.Debug("no bot token; running offline", "env", e.file.Discord.TokenEnv)
			return platform.Offline{}, nil
		}
		client, err := discord.New(token, e.logger.With("component", "discord"))
		if err != nil {
			return nil, err
		}
		e.client = client
		base = platform.NewBounded(client, e.file.LookupTimeout)
	}

	tg := e.file.Telegram
	if tg.TokenEnv == "" || tg.ChatID == 0 {
		return base, nil
	}
	token := os.Getenv(tg.TokenEnv)
	if token == "" {
		e.logger.Warn("telegram mirror configured without a token", "env", tg.TokenEnv)
		return base, nil
	}
	mirror, err := notify.NewTelegram(token, tg.ChatID, e.logger.With("component", "telegram"))
	if err != nil {
		e.logger.Warn("telegram mirror disabled", "error", err)
		return base, nil
	}
	return notify.WithMirrors(base, mirror), nil
}

func (e *env) Close() {
	if e.client != nil {
		if err := e.client.Close(); err != nil {
			e.logger.Debug("close discord session", "error", err)
		}
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("close database", "error", err)
	}
}

func firstGuild(f config.File) string {
	if len(f.Discord.Guilds) == 0 {
		return ""
	}
	return f.Discord.Guilds[0]
}
