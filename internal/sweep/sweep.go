// Package sweep reconciles every non-terminal referral against the clock
// and live role state, and schedules the hourly sweep and weekly reset.
//
// The scheduled sweep and manual triggers share Sweeper.Run. Sweeps may
// overlap, in one process or across processes sharing a store; every
// transition is guarded, so overlapping sweeps converge and only the one
// whose transition applied refunds or notifies.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/ids"
	"github.com/roach88/referral/internal/leaderboard"
	"github.com/roach88/referral/internal/lifecycle"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/reward"
	"github.com/roach88/referral/internal/store"
)

// Sweep triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerHTTP     = "http"
)

// Options controls one sweep.
type Options struct {
	// Force confirms (or fails) holding referrals without waiting for the
	// hold period to elapse.
	Force   bool
	Trigger string
}

// Summary counts what one sweep did.
type Summary struct {
	SweepID     string        `json:"sweep_id"`
	Trigger     string        `json:"trigger"`
	Force       bool          `json:"force"`
	Total       int           `json:"total"`
	Expired     int           `json:"expired"`
	Confirmed   int           `json:"confirmed"`
	Failed      int           `json:"failed"`
	Refunded    int           `json:"refunded"`
	Held        int           `json:"held"`
	Waiting     int           `json:"waiting"`
	Skipped     int           `json:"skipped"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// SweepPlatform is what a sweep needs from the platform.
type SweepPlatform interface {
	platform.Members
	platform.RoleEditor
	platform.Notifier
}

// Sweeper evaluates the time-driven transitions.
type Sweeper struct {
	Store    *store.Store
	Machine  *lifecycle.Machine
	Rewards  *reward.Tracker
	Board    *leaderboard.Refresher
	Config   *config.Resolver
	Platform SweepPlatform
	GuildID  string
	Clock    clock.Clock
	IDs      ids.Generator
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// sweepRules is the configuration snapshot one sweep runs against.
type sweepRules struct {
	now          time.Time
	hold         time.Duration
	requiredRole string
	invitedRole  string
	force        bool
}

// Run performs one sweep over every pending and holding referral.
//
// A member lookup that fails for any reason, including a timeout, is
// treated as the member having left. Cancelling ctx stops the loop;
// unprocessed referrals are picked up next time.
func (s *Sweeper) Run(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}
	sum := Summary{SweepID: s.newID(), Trigger: opts.Trigger, Force: opts.Force}
	logger := s.logger().With("sweep_id", sum.SweepID, "trigger", opts.Trigger)

	refs, err := s.Store.ListActive(ctx)
	if err != nil {
		return sum, fmt.Errorf("sweep: %w", err)
	}
	sum.Total = len(refs)

	rules := sweepRules{
		now:          s.Clock.Now(),
		hold:         s.Config.Days(ctx, config.KeyConfirmHoldDays),
		requiredRole: s.Config.String(ctx, config.KeyRequiredRoleID),
		invitedRole:  s.Config.String(ctx, config.KeyInvitedRoleID),
		force:        opts.Force,
	}

	refreshBoard := false
	for _, ref := range refs {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
		confirmed, err := s.evaluate(ctx, logger, rules, ref, &sum)
		if err != nil {
			// Store errors leave the referral for the next sweep.
			sum.Skipped++
			logger.Error("referral not evaluated", "referral", ref.ID, "invitee", ref.InviteeID, "error", err)
			continue
		}
		if confirmed {
			refreshBoard = true
		}
	}

	if refreshBoard && s.Board != nil {
		if err := s.Board.Refresh(ctx); err != nil {
			logger.Warn("leaderboard refresh failed", "error", err)
		}
	}

	sum.Duration = time.Since(start)
	s.Metrics.Sweep(opts.Trigger, sum.Duration)
	logger.Info("sweep finished",
		"total", sum.Total, "expired", sum.Expired, "confirmed", sum.Confirmed,
		"failed", sum.Failed, "refunded", sum.Refunded, "held", sum.Held,
		"waiting", sum.Waiting, "skipped", sum.Skipped, "interrupted", sum.Interrupted)
	return sum, nil
}

// evaluate applies the first matching rule to one referral. It reports
// whether the referral was confirmed by this call.
func (s *Sweeper) evaluate(ctx context.Context, logger *slog.Logger, r sweepRules, ref model.Referral, sum *Summary) (bool, error) {
	if ref.Status == model.StatusPending && ref.ExpiresAt != nil && r.now.After(*ref.ExpiresAt) {
		tr, err := s.Machine.Fail(ctx, ref.InviteeID, model.ReasonExpired)
		if err != nil || !tr.Applied {
			return false, err
		}
		sum.Expired++
		if tr.Refunded {
			sum.Refunded++
		}
		platform.RemoveRole(ctx, s.Platform, logger, s.GuildID, ref.InviteeID, r.invitedRole)
		s.dm(ctx, logger, ref.InviterID,
			fmt.Sprintf("Referral for %s expired; token refunded and invited role removed.", platform.Mention(ref.InviteeID)))
		return false, nil
	}

	member, err := s.Platform.Member(ctx, s.GuildID, ref.InviteeID)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !errors.Is(err, platform.ErrMemberNotFound) {
			logger.Warn("member lookup failed; treating as left", "invitee", ref.InviteeID, "error", err)
		}
		return false, s.fail(ctx, logger, ref, model.ReasonLeft, sum,
			fmt.Sprintf("Referral for %s left the server; token refunded.", platform.Mention(ref.InviteeID)))
	}

	switch ref.Status {
	case model.StatusPending:
		if !member.HasRole(r.requiredRole) {
			sum.Waiting++
			return false, nil
		}
		// The role event was missed; catch up.
		tr, err := s.Machine.StartHold(ctx, ref.InviteeID)
		if err != nil {
			return false, err
		}
		if tr.Applied {
			sum.Held++
		}
		return false, nil

	case model.StatusHolding:
		if !r.force && !holdElapsed(ref, r.now, r.hold) {
			sum.Waiting++
			return false, nil
		}
		if !member.HasRole(r.requiredRole) {
			return false, s.fail(ctx, logger, ref, model.ReasonRoleLost, sum,
				fmt.Sprintf("Referral for %s did not keep the required role; token refunded.", platform.Mention(ref.InviteeID)))
		}
		tr, err := s.Machine.Confirm(ctx, ref.InviteeID)
		if err != nil || !tr.Applied {
			return false, err
		}
		sum.Confirmed++
		s.dm(ctx, logger, ref.InviterID, fmt.Sprintf("Referral confirmed: %s! 🎉", platform.Mention(ref.InviteeID)))
		if s.Rewards != nil {
			if _, err := s.Rewards.CheckAndAward(ctx, ref.InviterID); err != nil {
				logger.Warn("reward check failed", "inviter", ref.InviterID, "error", err)
			}
		}
		return true, nil
	}
	return false, nil
}

func (s *Sweeper) fail(ctx context.Context, logger *slog.Logger, ref model.Referral, reason model.FailureReason, sum *Summary, notice string) error {
	tr, err := s.Machine.Fail(ctx, ref.InviteeID, reason)
	if err != nil || !tr.Applied {
		return err
	}
	sum.Failed++
	if tr.Refunded {
		sum.Refunded++
	}
	s.dm(ctx, logger, ref.InviterID, notice)
	return nil
}

// holdElapsed reports whether the hold has run its course. A holding
// referral with no start time is treated as elapsed.
func holdElapsed(ref model.Referral, now time.Time, hold time.Duration) bool {
	if ref.ConfirmStartedAt == nil {
		return true
	}
	return !now.Before(ref.ConfirmStartedAt.Add(hold))
}

func (s *Sweeper) dm(ctx context.Context, logger *slog.Logger, userID, text string) {
	platform.DirectMessage(ctx, s.Platform, logger, userID, text)
}

func (s *Sweeper) newID() string {
	if s.IDs == nil {
		return ids.UUIDv7{}.Generate()
	}
	return s.IDs.Generate()
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
