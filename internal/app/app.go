// Package app assembles the referral core over one store, one config
// resolver and one platform, and exposes the admin operations shared by
// the CLI and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/events"
	"github.com/roach88/referral/internal/ids"
	"github.com/roach88/referral/internal/invites"
	"github.com/roach88/referral/internal/leaderboard"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/lifecycle"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/reward"
	"github.com/roach88/referral/internal/store"
	"github.com/roach88/referral/internal/sweep"
)

// ErrRoleNotConfigured means required_role_id is unset.
var ErrRoleNotConfigured = errors.New("validation role not configured")

// Options are the collaborators of an App. Platform nil means offline:
// every platform call fails with platform.ErrOffline.
type Options struct {
	Store    *store.Store
	Config   *config.Resolver
	Platform platform.Platform
	GuildID  string
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// App is the wired referral core.
type App struct {
	Store    *store.Store
	Config   *config.Resolver
	Platform platform.Platform
	GuildID  string
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	Ledger     *ledger.Ledger
	Machine    *lifecycle.Machine
	Rewards    *reward.Tracker
	Board      *leaderboard.Refresher
	Tracker    *invites.Tracker
	Links      *invites.Links
	Sweeper    *sweep.Sweeper
	Dispatcher *events.Dispatcher
}

// New wires every component.
func New(o Options) *App {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Platform == nil {
		o.Platform = platform.Offline{}
	}

	a := &App{
		Store:    o.Store,
		Config:   o.Config,
		Platform: o.Platform,
		GuildID:  o.GuildID,
		Clock:    o.Clock,
		Metrics:  o.Metrics,
		Logger:   o.Logger,
		Tracker:  invites.NewTracker(),
	}
	a.Ledger = ledger.New(o.Store, o.Config, o.Clock, o.Metrics, o.Logger)
	a.Machine = lifecycle.New(o.Store, a.Ledger, o.Clock, o.Metrics, o.Logger)
	a.Rewards = reward.New(o.Store, o.Config, o.Platform, o.Clock, o.Metrics, o.Logger)
	a.Board = leaderboard.NewRefresher(o.Store, o.Config, o.Platform, o.Logger)
	a.Links = &invites.Links{
		Store:    o.Store,
		Ledger:   a.Ledger,
		Config:   o.Config,
		Platform: o.Platform,
		Tracker:  a.Tracker,
		Clock:    o.Clock,
		Logger:   o.Logger,
	}
	a.Sweeper = &sweep.Sweeper{
		Store:    o.Store,
		Machine:  a.Machine,
		Rewards:  a.Rewards,
		Board:    a.Board,
		Config:   o.Config,
		Platform: o.Platform,
		GuildID:  o.GuildID,
		Clock:    o.Clock,
		IDs:      ids.UUIDv7{},
		Metrics:  o.Metrics,
		Logger:   o.Logger.With("component", "sweep"),
	}
	a.Dispatcher = &events.Dispatcher{
		Store:    o.Store,
		Ledger:   a.Ledger,
		Machine:  a.Machine,
		Tracker:  a.Tracker,
		Board:    a.Board,
		Config:   o.Config,
		Platform: o.Platform,
		Clock:    o.Clock,
		IDs:      ids.UUIDv7{},
		Metrics:  o.Metrics,
		Logger:   o.Logger.With("component", "events"),
	}
	return a
}

// SetGuild points the guild-scoped components at guildID. serve calls it
// once the gateway reports its guilds.
func (a *App) SetGuild(guildID string) {
	a.GuildID = guildID
	a.Sweeper.GuildID = guildID
}

// Sweep runs one reconciliation sweep.
func (a *App) Sweep(ctx context.Context, force bool, trigger string) (sweep.Summary, error) {
	return a.Sweeper.Run(ctx, sweep.Options{Force: force, Trigger: trigger})
}

// ResetTokens sets every balance to the weekly quota.
func (a *App) ResetTokens(ctx context.Context) (int64, error) {
	return a.Ledger.ResetAll(ctx)
}

// GrantTokens adds delta (possibly negative) to a member's balance and
// returns the new balance.
func (a *App) GrantTokens(ctx context.Context, memberID string, delta int) (int, error) {
	if memberID == "" {
		return 0, errors.New("grant tokens: member id required")
	}
	return a.Ledger.Grant(ctx, memberID, delta)
}

// SetHold changes the hold period in days.
func (a *App) SetHold(ctx context.Context, days int) error {
	if days < 0 {
		return fmt.Errorf("set hold: days must be >= 0, got %d", days)
	}
	return a.Config.Set(ctx, config.KeyConfirmHoldDays, fmt.Sprint(days))
}

// FailManual fails the invitee's active referral without a refund.
func (a *App) FailManual(ctx context.Context, inviteeID string) (lifecycle.Transition, error) {
	return a.Machine.Fail(ctx, inviteeID, model.ReasonManual)
}

// Validate grants the required role to a member by hand and removes the
// configured remove-on-validate role. The hold itself starts from the
// resulting role event, or from the next sweep.
func (a *App) Validate(ctx context.Context, userID string) error {
	role := a.Config.String(ctx, config.KeyRequiredRoleID)
	if role == "" {
		return ErrRoleNotConfigured
	}
	if err := a.Platform.AddRole(ctx, a.GuildID, userID, role); err != nil {
		return fmt.Errorf("validate %s: %w", userID, err)
	}
	platform.RemoveRole(ctx, a.Platform, a.Logger, a.GuildID, userID, a.Config.String(ctx, config.KeyRemoveOnValidate))
	a.Logger.Info("member validated", "user", userID)
	return nil
}

// Stats returns an inviter's counters.
func (a *App) Stats(ctx context.Context, userID string) (model.UserStats, error) {
	return a.Store.UserStats(ctx, userID, a.Ledger.Seed(ctx))
}

// Leaderboard ranks inviters by confirmed referrals within period.
func (a *App) Leaderboard(ctx context.Context, period model.Period) ([]model.LeaderboardEntry, error) {
	return a.Store.Leaderboard(ctx, period.Since(a.Clock.Now()), store.LeaderboardLimit)
}
