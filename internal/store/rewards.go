package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/referral/internal/model"
)

// ConfirmedCount returns the number of confirmed referrals credited to the
// inviter.
func (s *Store) ConfirmedCount(ctx context.Context, inviterID string) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db, `
		SELECT COUNT(*) FROM referrals WHERE inviter_id = ? AND status = 'confirmed'
	`, inviterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed for %s: %w", inviterID, err)
	}
	return n, nil
}

// MarkReward records that tier was awarded to the user. An existing award
// is left untouched; inserted reports whether this call created it.
func (s *Store) MarkReward(ctx context.Context, userID string, tier int, at time.Time) (inserted bool, err error) {
	res, err := s.exec(ctx, s.db, `
		INSERT INTO reward_awards (user_id, tier, awarded_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, tier) DO NOTHING
	`, userID, tier, toUnix(at))
	if err != nil {
		return false, fmt.Errorf("mark reward %s tier %d: %w", userID, tier, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reward %s: rows affected: %w", userID, err)
	}
	return n == 1, nil
}

// HasReward reports whether tier was already awarded to the user.
func (s *Store) HasReward(ctx context.Context, userID string, tier int) (bool, error) {
	var one int
	err := s.queryRow(ctx, s.db, `
		SELECT 1 FROM reward_awards WHERE user_id = ? AND tier = ?
	`, userID, tier).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read reward %s tier %d: %w", userID, tier, err)
	}
	return true, nil
}

// Rewards lists the user's awards in tier order.
func (s *Store) Rewards(ctx context.Context, userID string) ([]model.RewardAward, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT user_id, tier, awarded_at FROM reward_awards
		WHERE user_id = ?
		ORDER BY tier ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rewards for %s: %w", userID, err)
	}
	defer rows.Close()

	awards := []model.RewardAward{}
	for rows.Next() {
		var (
			a  model.RewardAward
			at int64
		)
		if err := rows.Scan(&a.UserID, &a.Tier, &at); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		a.AwardedAt = fromUnix(at)
		awards = append(awards, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewards: %w", err)
	}
	return awards, nil
}
