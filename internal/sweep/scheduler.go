package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/platform"
)

// Default cron specs, evaluated in the configured timezone.
const (
	DefaultSweepSpec = "0 * * * *" // hourly
	DefaultResetSpec = "0 0 * * 1" // Monday 00:00
)

// Scheduler runs the sweep and the weekly token reset on cron schedules.
// A job still running when its next tick fires is skipped.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	ledger   *ledger.Ledger
	cfg      *config.Resolver
	notifier platform.Notifier
	logger   *slog.Logger

	sweepID cron.EntryID
	resetID cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

// ScheduleSpec holds the two cron expressions. Empty fields use the
// defaults.
type ScheduleSpec struct {
	Sweep string
	Reset string
}

// NewScheduler registers both jobs. It fails if either cron expression
// does not parse.
func NewScheduler(sw *Sweeper, l *ledger.Ledger, cfg *config.Resolver, n platform.Notifier, loc *time.Location, spec ScheduleSpec, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if spec.Sweep == "" {
		spec.Sweep = DefaultSweepSpec
	}
	if spec.Reset == "" {
		spec.Reset = DefaultResetSpec
	}

	cl := cronLogger{logger: logger.With("component", "scheduler")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper:  sw,
		ledger:   l,
		cfg:      cfg,
		notifier: n,
		logger:   logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	var err error
	if s.sweepID, err = s.cron.AddFunc(spec.Sweep, s.runSweep); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", spec.Sweep, err)
	}
	if s.resetID, err = s.cron.AddFunc(spec.Reset, s.runReset); err != nil {
		return nil, fmt.Errorf("reset schedule %q: %w", spec.Reset, err)
	}
	return s, nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to
// expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// Next returns when each job fires next after from, sweep first.
func (s *Scheduler) Next(from time.Time) (sweep, reset time.Time) {
	from = from.In(s.cron.Location())
	for _, e := range s.cron.Entries() {
		switch e.ID {
		case s.sweepID:
			sweep = e.Schedule.Next(from)
		case s.resetID:
			reset = e.Schedule.Next(from)
		}
	}
	return sweep, reset
}

func (s *Scheduler) runSweep() {
	if _, err := s.sweeper.Run(s.ctx, Options{Trigger: TriggerSchedule}); err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
	}
}

func (s *Scheduler) runReset() {
	if err := WeeklyReset(s.ctx, s.ledger, s.cfg, s.notifier, s.logger); err != nil {
		s.logger.Error("weekly reset failed", "error", err)
	}
}

// WeeklyReset sets every balance to the weekly quota and reports it to
// the log channel.
func WeeklyReset(ctx context.Context, l *ledger.Ledger, cfg *config.Resolver, n platform.Notifier, logger *slog.Logger) error {
	rows, err := l.ResetAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("weekly token reset", "balances", rows)
	platform.Post(ctx, n, logger, cfg.String(ctx, config.KeyLogChannelID), "Weekly token reset completed.")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
