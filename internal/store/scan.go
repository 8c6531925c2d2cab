package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/referral/internal/model"
)

// referralColumns is the column list every referral reader selects, in the
// order scanReferral expects.
const referralColumns = `id, inviter_id, invitee_id, invite_code, joined_at, status,
	expires_at, confirm_started_at, confirmed_at, failure_reason, suspicious`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReferral(row rowScanner) (model.Referral, error) {
	var (
		r                                  model.Referral
		code, reason                       sql.NullString
		joined                             int64
		expires, holdStarted, confirmedAt  sql.NullInt64
		status                             string
		suspicious                         int
	)
	err := row.Scan(&r.ID, &r.InviterID, &r.InviteeID, &code, &joined, &status,
		&expires, &holdStarted, &confirmedAt, &reason, &suspicious)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Referral{}, ErrNotFound
		}
		return model.Referral{}, fmt.Errorf("scan referral: %w", err)
	}
	r.InviteCode = code.String
	r.JoinedAt = fromUnix(joined)
	r.Status = model.Status(status)
	r.ExpiresAt = fromNullUnix(expires)
	r.ConfirmStartedAt = fromNullUnix(holdStarted)
	r.ConfirmedAt = fromNullUnix(confirmedAt)
	r.FailureReason = model.FailureReason(reason.String)
	r.Suspicious = suspicious != 0
	return r, nil
}

func collectReferrals(rows *sql.Rows) ([]model.Referral, error) {
	defer rows.Close()

	refs := []model.Referral{}
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}
	return refs, nil
}

func toUnix(t time.Time) int64 {
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
