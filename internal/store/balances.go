package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/referral/internal/model"
)

// BalanceSeed is the state a balance row is created with on first reference.
type BalanceSeed struct {
	Quota int
	At    time.Time
}

// ensureBalance creates the member's row at the seed quota if absent.
func (s *Store) ensureBalance(ctx context.Context, q querier, memberID string, seed BalanceSeed) error {
	quota := seed.Quota
	if quota < 0 {
		quota = 0
	}
	_, err := s.exec(ctx, q, `
		INSERT INTO balances (member_id, tokens_left, reset_at) VALUES (?, ?, ?)
		ON CONFLICT (member_id) DO NOTHING
	`, memberID, quota, toUnix(seed.At))
	if err != nil {
		return fmt.Errorf("ensure balance %s: %w", memberID, err)
	}
	return nil
}

// Balance returns the member's balance, creating it from seed if absent.
func (s *Store) Balance(ctx context.Context, memberID string, seed BalanceSeed) (model.Balance, error) {
	if err := s.ensureBalance(ctx, s.db, memberID, seed); err != nil {
		return model.Balance{}, err
	}

	var (
		b       = model.Balance{MemberID: memberID}
		resetAt int64
	)
	err := s.queryRow(ctx, s.db, `
		SELECT tokens_left, reset_at FROM balances WHERE member_id = ?
	`, memberID).Scan(&b.TokensLeft, &resetAt)
	if err != nil {
		return model.Balance{}, fmt.Errorf("read balance %s: %w", memberID, err)
	}
	b.ResetAt = fromUnix(resetAt)
	return b, nil
}

// AddTokens adds delta (which may be negative) to the member's balance,
// clamping at zero, and returns the new balance. The clamp is part of the
// UPDATE so concurrent callers never observe a negative value.
func (s *Store) AddTokens(ctx context.Context, memberID string, delta int, seed BalanceSeed) (int, error) {
	var left int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		left, err = s.addTokens(ctx, tx, memberID, delta, seed)
		return err
	})
	return left, err
}

func (s *Store) addTokens(ctx context.Context, q querier, memberID string, delta int, seed BalanceSeed) (int, error) {
	if err := s.ensureBalance(ctx, q, memberID, seed); err != nil {
		return 0, err
	}
	var left int
	err := s.queryRow(ctx, q, `
		UPDATE balances
		SET tokens_left = CASE WHEN tokens_left + ? < 0 THEN 0 ELSE tokens_left + ? END
		WHERE member_id = ?
		RETURNING tokens_left
	`, delta, delta, memberID).Scan(&left)
	if err != nil {
		return 0, fmt.Errorf("add tokens %s: %w", memberID, err)
	}
	return left, nil
}

// SetTokens overwrites the member's balance. Negative amounts are stored as 0.
func (s *Store) SetTokens(ctx context.Context, memberID string, amount int, seed BalanceSeed) error {
	if amount < 0 {
		amount = 0
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureBalance(ctx, tx, memberID, seed); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `UPDATE balances SET tokens_left = ? WHERE member_id = ?`, amount, memberID)
		if err != nil {
			return fmt.Errorf("set tokens %s: %w", memberID, err)
		}
		return nil
	})
}

// ResetAllTokens sets every member's balance to quota and stamps reset_at.
// Returns the number of balances reset.
func (s *Store) ResetAllTokens(ctx context.Context, quota int, at time.Time) (int64, error) {
	if quota < 0 {
		quota = 0
	}
	res, err := s.exec(ctx, s.db, `UPDATE balances SET tokens_left = ?, reset_at = ?`, quota, toUnix(at))
	if err != nil {
		return 0, fmt.Errorf("reset tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset tokens: rows affected: %w", err)
	}
	return n, nil
}

// balanceExists is used by tests to check lazy creation.
func (s *Store) balanceExists(ctx context.Context, memberID string) (bool, error) {
	var one int
	err := s.queryRow(ctx, s.db, `SELECT 1 FROM balances WHERE member_id = ?`, memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// EnsureBalance creates the member's row at the seed quota if absent.
func (s *Store) EnsureBalance(ctx context.Context, memberID string, seed BalanceSeed) error {
	return s.ensureBalance(ctx, s.db, memberID, seed)
}
