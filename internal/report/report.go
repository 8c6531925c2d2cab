// Package report renders referral data as chat-ready text. Times are
// shown in the configured timezone.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/referral/internal/invites"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/sweep"
)

// MaxMessageLength bounds one chunk of a multi-message listing.
const MaxMessageLength = 1900

// DateLayout renders timestamps as month/day/year and 12-hour time.
const DateLayout = "1/2/06, 3:04 PM"

// Fixed replies for empty results.
const (
	NoReferral     = "No referral registered for this user (likely they did not use a bot invite)."
	NoInvited      = "No users found for the given filters."
	NoHolding      = "✅ No referrals currently in holding."
	NoLeaderboard  = "No leaderboard data yet."
	statusAllLabel = "all"
)

// Renderer formats reports in one location.
type Renderer struct {
	loc *time.Location
}

// New returns a Renderer for loc. A nil loc renders in UTC.
func New(loc *time.Location) Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return Renderer{loc: loc}
}

func (r Renderer) date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format(DateLayout)
}

// Stats renders one inviter's counters. Pending includes holding.
func Stats(s model.UserStats) string {
	return fmt.Sprintf("Tokens: %d\nPending: %d\nConfirmed: %d\nFailed: %d", s.Tokens, s.Pending, s.Confirmed, s.Failed)
}

// Leaderboard renders a ranked list for period.
func Leaderboard(period model.Period, entries []model.LeaderboardEntry) string {
	if len(entries) == 0 {
		return NoLeaderboard
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard (%s):", period)
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s - %d", i+1, platform.Mention(e.InviterID), e.Confirmed)
	}
	return b.String()
}

// Link renders a member's personal link.
func Link(l invites.Link) string {
	return fmt.Sprintf("Your link: %s | Tokens left: %d", l.URL, l.TokensLeft)
}

// Summary renders a sweep result.
func Summary(s sweep.Summary) string {
	return fmt.Sprintf("Processed: expired=%d, confirmed=%d, failed=%d, tokens refunded=%d (held=%d, waiting=%d, skipped=%d)",
		s.Expired, s.Confirmed, s.Failed, s.Refunded, s.Held, s.Waiting, s.Skipped)
}

// WhoInvited renders an invitee's most recent referral.
func (r Renderer) WhoInvited(ref model.Referral) string {
	code := ref.InviteCode
	if code == "" {
		code = "-"
	}
	lines := []string{
		"User: " + platform.Mention(ref.InviteeID),
		"Invited by: " + platform.Mention(ref.InviterID),
		"Status: " + string(ref.Status),
		"Invite code: " + code,
		"Joined: " + r.date(ref.JoinedAt),
	}
	switch {
	case ref.Status == model.StatusHolding && ref.ConfirmStartedAt != nil:
		lines = append(lines, "Holding since: "+r.date(*ref.ConfirmStartedAt))
	case ref.Status == model.StatusConfirmed && ref.ConfirmedAt != nil:
		lines = append(lines, "Confirmed on: "+r.date(*ref.ConfirmedAt))
	case ref.Status == model.StatusPending && ref.ExpiresAt != nil:
		lines = append(lines, "Pending expiry: "+r.date(*ref.ExpiresAt))
	}
	if ref.FailureReason != "" {
		lines = append(lines, "Failure reason: "+string(ref.FailureReason))
	}
	return strings.Join(lines, "\n")
}

// InvitedList renders the referrals of one inviter. status is the filter
// that produced refs; empty means all.
func (r Renderer) InvitedList(inviterID string, status model.Status, limit int, refs []model.Referral) string {
	if len(refs) == 0 {
		return NoInvited
	}
	label := string(status)
	if label == "" {
		label = statusAllLabel
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Invited by %s - status=%s - max=%d", platform.Mention(inviterID), label, limit)
	for _, ref := range refs {
		fmt.Fprintf(&b, "\n• %s - %s", platform.Mention(ref.InviteeID), ref.Status)
		switch {
		case ref.Status == model.StatusConfirmed && ref.ConfirmedAt != nil:
			b.WriteString(", confirmed: " + r.date(*ref.ConfirmedAt))
		case ref.Status == model.StatusHolding && ref.ConfirmStartedAt != nil:
			b.WriteString(", holding since: " + r.date(*ref.ConfirmStartedAt))
		case !ref.JoinedAt.IsZero():
			b.WriteString(", joined: " + r.date(ref.JoinedAt))
		}
	}
	return b.String()
}

// HoldingList renders holding referrals with the time left before the
// sweep may confirm them. The result is split into chunks of at most
// MaxMessageLength characters, each starting with the header.
func (r Renderer) HoldingList(refs []model.Referral, now time.Time, holdDays int) []string {
	var lines []string
	for _, ref := range refs {
		if ref.Status != model.StatusHolding || ref.ConfirmStartedAt == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s (from %s)\n  %s - Holding since: %s",
			platform.Mention(ref.InviteeID), platform.Mention(ref.InviterID),
			Remaining(*ref.ConfirmStartedAt, now, holdDays), r.date(*ref.ConfirmStartedAt)))
	}
	if len(lines) == 0 {
		return []string{NoHolding}
	}

	header := fmt.Sprintf("📋 **Referrals in Holding (%d)**\n⏱️ Days to automatic confirmation: %d\n\n", len(lines), holdDays)
	var chunks []string
	current := header
	for _, line := range lines {
		if current != header && utf8.RuneCountInString(current+line+"\n") > MaxMessageLength {
			chunks = append(chunks, current)
			current = header
		}
		current += line + "\n"
	}
	return append(chunks, current)
}

// Remaining describes how long a hold that started at start has left.
func Remaining(start, now time.Time, holdDays int) string {
	left := float64(holdDays) - now.Sub(start).Hours()/24
	switch {
	case left <= 0:
		return "🟢 Ready for confirmation"
	case left <= 1:
		return fmt.Sprintf("🟡 %dh remaining", int(math.Ceil(left*24)))
	default:
		return fmt.Sprintf("🔵 %d days remaining", int(math.Ceil(left)))
	}
}
