package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/referral/internal/model"
)

// List bounds for ByInviter.
const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)

// PendingParams describes a new pending referral.
type PendingParams struct {
	InviterID  string
	InviteeID  string
	InviteCode string
	JoinedAt   time.Time
	ExpiresAt  *time.Time
	Suspicious bool

	// ConsumeToken takes one token from the inviter in the same transaction
	// as the insert. Nothing is consumed when an active referral already
	// exists for the invitee.
	ConsumeToken bool
	Seed         BalanceSeed
}

// CreatePending inserts a pending referral unless the invitee already has a
// non-terminal one, in which case the existing id is returned and created
// is false.
//
// The existence check and insert run in one transaction. The partial unique
// index idx_referrals_active_invitee closes the remaining window when two
// processes share a postgres store: the losing insert is skipped and the
// winner's row is re-read.
func (s *Store) CreatePending(ctx context.Context, p PendingParams) (id int64, created bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.activeID(ctx, tx, p.InviteeID)
		if err != nil {
			return err
		}
		if existing != 0 {
			id = existing
			return nil
		}

		err = s.queryRow(ctx, tx, `
			INSERT INTO referrals (inviter_id, invitee_id, invite_code, joined_at, status, expires_at, suspicious)
			VALUES (?, ?, ?, ?, 'pending', ?, ?)
			ON CONFLICT DO NOTHING
			RETURNING id
		`, p.InviterID, p.InviteeID, nullString(p.InviteCode), toUnix(p.JoinedAt),
			toNullUnix(p.ExpiresAt), boolInt(p.Suspicious)).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			id, err = s.activeID(ctx, tx, p.InviteeID)
			return err
		}
		if err != nil {
			return fmt.Errorf("insert referral for %s: %w", p.InviteeID, err)
		}

		created = true
		if p.ConsumeToken {
			if _, err := s.addTokens(ctx, tx, p.InviterID, -1, p.Seed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *Store) activeID(ctx context.Context, q querier, inviteeID string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, q, `
		SELECT id FROM referrals
		WHERE invitee_id = ? AND status IN ('pending', 'holding')
		LIMIT 1
	`, inviteeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find active referral for %s: %w", inviteeID, err)
	}
	return id, nil
}

// StartHold moves the invitee's pending referral to holding. applied is
// false when there was no pending referral (guard miss).
func (s *Store) StartHold(ctx context.Context, inviteeID string, at time.Time) (ref model.Referral, applied bool, err error) {
	row := s.queryRow(ctx, s.db, `
		UPDATE referrals
		SET status = 'holding', confirm_started_at = ?, expires_at = NULL
		WHERE invitee_id = ? AND status = 'pending'
		RETURNING `+referralColumns, toUnix(at), inviteeID)
	return guarded(row, "start hold", inviteeID)
}

// Confirm moves the invitee's holding referral to confirmed.
func (s *Store) Confirm(ctx context.Context, inviteeID string, at time.Time) (ref model.Referral, applied bool, err error) {
	row := s.queryRow(ctx, s.db, `
		UPDATE referrals
		SET status = 'confirmed', confirmed_at = ?
		WHERE invitee_id = ? AND status = 'holding'
		RETURNING `+referralColumns, toUnix(at), inviteeID)
	return guarded(row, "confirm", inviteeID)
}

// Fail moves the invitee's non-terminal referral to failed. When refund is
// set, one token is returned to the inviter in the same transaction, so
// only the caller whose update applied ever refunds.
func (s *Store) Fail(ctx context.Context, inviteeID string, reason model.FailureReason, refund bool, seed BalanceSeed) (ref model.Referral, applied bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		row := s.queryRow(ctx, tx, `
			UPDATE referrals
			SET status = 'failed', failure_reason = ?, expires_at = NULL
			WHERE invitee_id = ? AND status IN ('pending', 'holding')
			RETURNING `+referralColumns, string(reason), inviteeID)
		ref, applied, err = guarded(row, "fail", inviteeID)
		if err != nil || !applied || !refund {
			return err
		}
		_, err = s.addTokens(ctx, tx, ref.InviterID, 1, seed)
		return err
	})
	if err != nil {
		return model.Referral{}, false, err
	}
	return ref, applied, nil
}

func guarded(row *sql.Row, op, inviteeID string) (model.Referral, bool, error) {
	ref, err := scanReferral(row)
	if errors.Is(err, ErrNotFound) {
		return model.Referral{}, false, nil
	}
	if err != nil {
		return model.Referral{}, false, fmt.Errorf("%s %s: %w", op, inviteeID, err)
	}
	return ref, true, nil
}

// ReferralByID returns a referral by id.
func (s *Store) ReferralByID(ctx context.Context, id int64) (model.Referral, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+referralColumns+` FROM referrals WHERE id = ?`, id)
	return scanReferral(row)
}

// ActiveByInvitee returns the invitee's pending or holding referral.
func (s *Store) ActiveByInvitee(ctx context.Context, inviteeID string) (model.Referral, error) {
	row := s.queryRow(ctx, s.db, `
		SELECT `+referralColumns+` FROM referrals
		WHERE invitee_id = ? AND status IN ('pending', 'holding')
		LIMIT 1
	`, inviteeID)
	return scanReferral(row)
}

// LatestByInvitee returns the invitee's most recent referral in any status.
func (s *Store) LatestByInvitee(ctx context.Context, inviteeID string) (model.Referral, error) {
	row := s.queryRow(ctx, s.db, `
		SELECT `+referralColumns+` FROM referrals
		WHERE invitee_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, inviteeID)
	return scanReferral(row)
}

// ListActive returns every pending or holding referral, oldest first.
func (s *Store) ListActive(ctx context.Context) ([]model.Referral, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+referralColumns+` FROM referrals
		WHERE status IN ('pending', 'holding')
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active referrals: %w", err)
	}
	return collectReferrals(rows)
}

// ByInviter lists the inviter's referrals, newest first. An empty status
// lists all statuses. limit is clamped to [1, MaxListLimit].
func (s *Store) ByInviter(ctx context.Context, inviterID string, status model.Status, limit int) ([]model.Referral, error) {
	limit = ClampLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.query(ctx, s.db, `
			SELECT `+referralColumns+` FROM referrals
			WHERE inviter_id = ?
			ORDER BY id DESC
			LIMIT ?
		`, inviterID, limit)
	} else {
		rows, err = s.query(ctx, s.db, `
			SELECT `+referralColumns+` FROM referrals
			WHERE inviter_id = ? AND status = ?
			ORDER BY id DESC
			LIMIT ?
		`, inviterID, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list referrals by %s: %w", inviterID, err)
	}
	return collectReferrals(rows)
}

// Holding returns every holding referral, longest-held first.
func (s *Store) Holding(ctx context.Context) ([]model.Referral, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+referralColumns+` FROM referrals
		WHERE status = 'holding'
		ORDER BY confirm_started_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list holding referrals: %w", err)
	}
	return collectReferrals(rows)
}

// ClampLimit bounds a list size to [1, MaxListLimit]. Zero means
// DefaultListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
