// Package leaderboard renders and publishes the top-inviters board.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/store"
)

// BoardSize is the number of inviters shown on the board message.
const BoardSize = 5

const (
	boardTitle  = "🏆 Referral Leaderboard - Top 5"
	boardFooter = "Count: confirmed referrals (all-time)"
	boardEmpty  = "No data yet. Invite users and complete confirmations!"
)

var prefixes = [BoardSize]string{"🥇", "🥈", "🥉", "4️⃣", "5️⃣"}

// Build renders the board from ranked entries. Only the first BoardSize
// entries are shown.
func Build(entries []model.LeaderboardEntry) platform.Board {
	if len(entries) > BoardSize {
		entries = entries[:BoardSize]
	}
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s - %d", prefixes[i], platform.Mention(e.InviterID), e.Confirmed))
	}
	desc := boardEmpty
	if len(lines) > 0 {
		desc = strings.Join(lines, "\n")
	}
	return platform.Board{Title: boardTitle, Description: desc, Footer: boardFooter}
}

// Refresher keeps the board message current.
type Refresher struct {
	store     *store.Store
	cfg       *config.Resolver
	publisher platform.BoardPublisher
	logger    *slog.Logger
}

// NewRefresher creates a Refresher. logger may be nil.
func NewRefresher(s *store.Store, cfg *config.Resolver, p platform.BoardPublisher, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{store: s, cfg: cfg, publisher: p, logger: logger}
}

// Refresh edits the board message in the leaderboard channel (else the
// invite channel), posting a new one if it is missing, and remembers its
// id. Without a configured channel it does nothing.
func (r *Refresher) Refresh(ctx context.Context) error {
	channelID := platform.FirstChannel(
		r.cfg.String(ctx, config.KeyLeaderboardChannelID),
		r.cfg.String(ctx, config.KeyInviteChannelID),
	)
	if channelID == "" || r.publisher == nil {
		return nil
	}

	entries, err := r.store.Leaderboard(ctx, time.Time{}, BoardSize)
	if err != nil {
		return fmt.Errorf("refresh leaderboard: %w", err)
	}

	prevID := r.cfg.String(ctx, config.KeyLeaderboardMessageID)
	msgID, err := r.publisher.PublishBoard(ctx, channelID, prevID, Build(entries))
	if err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}
	if msgID != "" && msgID != prevID {
		if err := r.cfg.Set(ctx, config.KeyLeaderboardMessageID, msgID); err != nil {
			return err
		}
		r.logger.Info("leaderboard message posted", "channel", channelID, "message", msgID)
	}
	return nil
}
