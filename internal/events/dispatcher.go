package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/ids"
	"github.com/roach88/referral/internal/invites"
	"github.com/roach88/referral/internal/leaderboard"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/lifecycle"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/store"
)

// DispatchPlatform is what event handling needs from the platform.
type DispatchPlatform interface {
	platform.InviteLister
	platform.RoleEditor
	platform.Notifier
}

// Dispatcher handles platform events.
type Dispatcher struct {
	Store    *store.Store
	Ledger   *ledger.Ledger
	Machine  *lifecycle.Machine
	Tracker  *invites.Tracker
	Board    *leaderboard.Refresher
	Config   *config.Resolver
	Platform DispatchPlatform
	Clock    clock.Clock
	IDs      ids.Generator
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Ready seeds the invite cache for each guild and refreshes the
// leaderboard message. A guild whose invites cannot be listed is left
// unseeded; its first join then counts every use as new.
func (d *Dispatcher) Ready(ctx context.Context, guildIDs []string) error {
	var errs []error
	for _, guildID := range guildIDs {
		live, err := d.Platform.Invites(ctx, guildID)
		if err != nil {
			d.logger().Warn("cannot list invites", "guild", guildID, "error", err)
			errs = append(errs, fmt.Errorf("seed invites for %s: %w", guildID, err))
			continue
		}
		d.Tracker.Seed(guildID, live)
		d.logger().Info("invite cache seeded", "guild", guildID, "invites", len(live))
	}
	if d.Board != nil {
		if err := d.Board.Refresh(ctx); err != nil {
			d.logger().Warn("leaderboard refresh failed", "error", err)
		}
	}
	return errors.Join(errs...)
}

// InviteCreated records a new invite in the cache only. Referral links
// are stored when they are created through Links.
func (d *Dispatcher) InviteCreated(ctx context.Context, guildID, code string, uses int) {
	d.Tracker.OnInviteCreated(guildID, code, uses)
}

// InviteDeleted drops the code from the cache and deactivates its record.
func (d *Dispatcher) InviteDeleted(ctx context.Context, guildID, code string) error {
	d.Tracker.OnInviteDeleted(guildID, code)
	if _, err := d.Store.SetInviteActive(ctx, code, false); err != nil {
		return fmt.Errorf("deactivate invite %s: %w", code, err)
	}
	return nil
}

// MemberJoined attributes a join to a referral link and records a pending
// referral when the join qualifies. A join that does not qualify is
// reported through JoinOutcome.Skip; the error return is kept for store
// failures.
func (d *Dispatcher) MemberJoined(ctx context.Context, guildID string, member platform.Member) (JoinOutcome, error) {
	out := JoinOutcome{EventID: d.newID(), InviteeID: member.ID}
	logger := d.logger().With("event_id", out.EventID, "invitee", member.ID)
	logChannel := d.Config.String(ctx, config.KeyLogChannelID)

	outcome, err := d.join(ctx, logger, logChannel, guildID, member, out)
	if err != nil {
		d.Metrics.Join("error")
		return outcome, err
	}
	d.Metrics.Join(outcome.Label())
	if outcome.Skip != "" {
		logger.Info("join not counted", "skip", outcome.Skip, "code", outcome.Code, "inviter", outcome.InviterID)
	}
	return outcome, nil
}

func (d *Dispatcher) join(ctx context.Context, logger *slog.Logger, logChannel, guildID string, member platform.Member, out JoinOutcome) (JoinOutcome, error) {
	invitee := platform.Mention(member.ID)

	live, err := d.Platform.Invites(ctx, guildID)
	if err != nil {
		// Without a listing nothing can be attributed, and the cache is
		// kept for the next join.
		logger.Warn("cannot list invites", "guild", guildID, "error", err)
		out.Skip = SkipAttributionFailed
		platform.Post(ctx, d.Platform, logger, logChannel, fmt.Sprintf("Join not attributable: %s", invitee))
		return out, nil
	}
	code, ok := d.Tracker.AttributeJoin(guildID, live)
	if !ok {
		out.Skip = SkipAttributionFailed
		platform.Post(ctx, d.Platform, logger, logChannel, fmt.Sprintf("Join not attributable: %s", invitee))
		return out, nil
	}
	out.Code = code

	inv, err := d.Store.InviteByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) || (err == nil && inv.InviterID == "") {
		out.Skip = SkipNotTracked
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.InviterID = inv.InviterID
	inviter := inv.InviterID

	now := d.Clock.Now()
	ageDays := accountAgeDays(member, now)
	out.AccountAgeDays = int(math.Floor(ageDays))
	if minAge := d.Config.Int(ctx, config.KeyMinAccountAgeDays); ageDays < float64(minAge) {
		out.Skip = SkipAccountTooNew
		platform.DirectMessage(ctx, d.Platform, logger, inviter, fmt.Sprintf(
			"A new user (%s) used your link but their account is too new (%d days). They will not be counted.",
			invitee, out.AccountAgeDays))
		platform.Post(ctx, d.Platform, logger, logChannel, fmt.Sprintf(
			"Under-age join not counted: %s, inviter %s", invitee, platform.Mention(inviter)))
		return out, nil
	}

	tokens, err := d.Ledger.Balance(ctx, inviter)
	if err != nil {
		return out, err
	}
	if tokens <= 0 {
		out.Skip = SkipQuotaExhausted
		platform.DirectMessage(ctx, d.Platform, logger, inviter, fmt.Sprintf(
			"A user joined with your link but you had no tokens: %s will not be counted (link stays active).", invitee))
		return out, nil
	}

	tr, err := d.Machine.CreatePending(ctx, lifecycle.PendingRequest{
		InviterID:    inviter,
		InviteCode:   code,
		InviteeID:    member.ID,
		JoinedAt:     now,
		TTLDays:      d.Config.Int(ctx, config.KeyPendingTTLDays),
		ConsumeToken: true,
	})
	if err != nil {
		return out, err
	}
	out.Referral = tr.Referral
	if !tr.Applied {
		out.Skip = SkipAlreadyActive
		return out, nil
	}
	out.Counted = true

	platform.AddRole(ctx, d.Platform, logger, guildID, member.ID, d.Config.String(ctx, config.KeyEntryRoleID))
	platform.AddRole(ctx, d.Platform, logger, guildID, member.ID, d.Config.String(ctx, config.KeyInvitedRoleID))

	if out.TokensLeft, err = d.Ledger.Balance(ctx, inviter); err != nil {
		return out, err
	}
	platform.DirectMessage(ctx, d.Platform, logger, inviter, fmt.Sprintf(
		"New pending referral: %s. Tokens left: %d", invitee, out.TokensLeft))
	platform.Post(ctx, d.Platform, logger, logChannel, fmt.Sprintf(
		"Pending referral created: inviter %s → invitee %s via code %s", platform.Mention(inviter), invitee, code))
	return out, nil
}

// accountAgeDays is the account's age at now in fractional days. An
// unknown creation time counts as old enough.
func accountAgeDays(m platform.Member, now time.Time) float64 {
	if m.CreatedAt.IsZero() {
		return math.MaxInt32
	}
	return now.Sub(m.CreatedAt).Hours() / 24
}

// MemberUpdated starts the hold when the required role appears on a
// member with a pending referral. before is nil when the previous roles
// are unknown.
func (d *Dispatcher) MemberUpdated(ctx context.Context, guildID, userID string, before, after []string) (lifecycle.Transition, error) {
	role := d.Config.String(ctx, config.KeyRequiredRoleID)
	if role == "" || slices.Contains(before, role) || !slices.Contains(after, role) {
		return lifecycle.Transition{}, nil
	}
	tr, err := d.Machine.StartHold(ctx, userID)
	if err != nil || !tr.Applied {
		return tr, err
	}
	holdDays := d.Config.Int(ctx, config.KeyConfirmHoldDays)
	platform.DirectMessage(ctx, d.Platform, d.logger(), tr.Referral.InviterID, fmt.Sprintf(
		"Referral %s obtained the required role. Waiting %d days...", platform.Mention(userID), holdDays))
	return tr, nil
}

// MemberLeft fails the member's active referral and refunds the inviter.
func (d *Dispatcher) MemberLeft(ctx context.Context, guildID, userID string) (lifecycle.Transition, error) {
	tr, err := d.Machine.Fail(ctx, userID, model.ReasonLeft)
	if err != nil || !tr.Applied {
		return tr, err
	}
	platform.DirectMessage(ctx, d.Platform, d.logger(), tr.Referral.InviterID, fmt.Sprintf(
		"Referral %s left the server; token refunded.", platform.Mention(userID)))
	return tr, nil
}

func (d *Dispatcher) newID() string {
	if d.IDs == nil {
		return ids.UUIDv7{}.Generate()
	}
	return d.IDs.Generate()
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
