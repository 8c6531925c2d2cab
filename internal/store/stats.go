package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/referral/internal/model"
)

// LeaderboardLimit is the number of inviters a leaderboard query returns.
const LeaderboardLimit = 20

// UserStats summarizes one inviter. Pending counts both pending and
// holding referrals. Reading stats creates the balance row if absent.
func (s *Store) UserStats(ctx context.Context, userID string, seed BalanceSeed) (model.UserStats, error) {
	var st model.UserStats
	err := s.queryRow(ctx, s.db, `
		SELECT
			COALESCE(SUM(CASE WHEN status IN ('pending', 'holding') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'confirmed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM referrals
		WHERE inviter_id = ?
	`, userID).Scan(&st.Pending, &st.Confirmed, &st.Failed)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("stats for %s: %w", userID, err)
	}

	b, err := s.Balance(ctx, userID, seed)
	if err != nil {
		return model.UserStats{}, err
	}
	st.Tokens = b.TokensLeft
	return st, nil
}

// Leaderboard ranks inviters by confirmed referrals whose confirmed_at is
// at or after since. A zero since means all time. Ties break on inviter id.
func (s *Store) Leaderboard(ctx context.Context, since time.Time, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = LeaderboardLimit
	}
	var lower int64
	if !since.IsZero() {
		lower = toUnix(since)
	}

	rows, err := s.query(ctx, s.db, `
		SELECT inviter_id, COUNT(*) AS confirmed
		FROM referrals
		WHERE status = 'confirmed' AND COALESCE(confirmed_at, 0) >= ?
		GROUP BY inviter_id
		ORDER BY confirmed DESC, inviter_id ASC
		LIMIT ?
	`, lower, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.InviterID, &e.Confirmed); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}
