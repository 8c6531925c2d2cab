// Package reward awards one-time tiers for confirmed referrals.
//
// Tiers compare the inviter's running confirmed count by exact equality,
// so CheckAndAward must run after every single confirmation: a batch that
// skips past a threshold never awards it.
package reward

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/store"
)

// Award is the result of one check.
type Award struct {
	InviterID string `json:"inviter_id"`
	Count     int    `json:"count"`
	// Tier is the threshold reached, or 0 when Count matched none.
	Tier int `json:"tier,omitempty"`
	// Awarded is true only for the call that recorded the award.
	Awarded bool `json:"awarded"`
}

// Tracker checks and records reward tiers.
type Tracker struct {
	store    *store.Store
	cfg      *config.Resolver
	notifier platform.Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Tracker. notifier, m and logger may be nil.
func New(s *store.Store, cfg *config.Resolver, n platform.Notifier, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: s, cfg: cfg, notifier: n, clock: clk, metrics: m, logger: logger}
}

// Tiers returns the configured thresholds.
func (t *Tracker) Tiers(ctx context.Context) (tier1, tier2 int) {
	return t.cfg.Int(ctx, config.KeyRewardTier1), t.cfg.Int(ctx, config.KeyRewardTier2)
}

// CheckAndAward awards the tier equal to the inviter's confirmed count,
// once per (inviter, tier). The congratulation goes to the reward channel,
// else the invite channel, else the log channel.
func (t *Tracker) CheckAndAward(ctx context.Context, inviterID string) (Award, error) {
	count, err := t.store.ConfirmedCount(ctx, inviterID)
	if err != nil {
		return Award{}, fmt.Errorf("check reward for %s: %w", inviterID, err)
	}
	award := Award{InviterID: inviterID, Count: count}

	tier1, tier2 := t.Tiers(ctx)
	if count <= 0 || (count != tier1 && count != tier2) {
		return award, nil
	}
	award.Tier = count

	inserted, err := t.store.MarkReward(ctx, inviterID, count, t.clock.Now())
	if err != nil {
		return award, err
	}
	if !inserted {
		return award, nil
	}
	award.Awarded = true

	t.metrics.Reward(count)
	t.logger.Info("reward tier reached", "inviter", inviterID, "tier", count)

	channelID := platform.FirstChannel(
		t.cfg.String(ctx, config.KeyRewardChannelID),
		t.cfg.String(ctx, config.KeyInviteChannelID),
		t.cfg.String(ctx, config.KeyLogChannelID),
	)
	platform.Post(ctx, t.notifier, t.logger, channelID, t.message(ctx, inviterID, count))
	return award, nil
}

func (t *Tracker) message(ctx context.Context, inviterID string, count int) string {
	msg := fmt.Sprintf("🎁 %s congrats! You reached %d confirmed referrals!", platform.Mention(inviterID), count)
	if staff := t.cfg.String(ctx, config.KeyStaffRoleID); staff != "" {
		msg += " " + platform.RoleMention(staff)
	}
	return msg
}
