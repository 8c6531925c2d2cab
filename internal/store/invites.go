package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/referral/internal/model"
)

const inviteColumns = `code, inviter_id, channel_id, created_at, active`

// UpsertInvite records a personal invite. Re-recording an existing code
// overwrites its owner, channel and active flag but keeps created_at.
func (s *Store) UpsertInvite(ctx context.Context, inv model.Invite) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO invites (code, inviter_id, channel_id, created_at, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			inviter_id = excluded.inviter_id,
			channel_id = excluded.channel_id,
			active = excluded.active
	`, inv.Code, inv.InviterID, inv.ChannelID, toUnix(inv.CreatedAt), boolInt(inv.Active))
	if err != nil {
		return fmt.Errorf("upsert invite %s: %w", inv.Code, err)
	}
	return nil
}

// SetInviteActive flips the active flag. Invites are never deleted.
// Returns false if the code is unknown.
func (s *Store) SetInviteActive(ctx context.Context, code string, active bool) (bool, error) {
	res, err := s.exec(ctx, s.db, `UPDATE invites SET active = ? WHERE code = ?`, boolInt(active), code)
	if err != nil {
		return false, fmt.Errorf("set invite %s active=%t: %w", code, active, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set invite %s: rows affected: %w", code, err)
	}
	return n > 0, nil
}

// InviteByCode returns the invite with the given code, active or not.
func (s *Store) InviteByCode(ctx context.Context, code string) (model.Invite, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+inviteColumns+` FROM invites WHERE code = ?`, code)
	return scanInvite(row)
}

// ActiveInviteByInviter returns the inviter's newest active invite.
func (s *Store) ActiveInviteByInviter(ctx context.Context, inviterID string) (model.Invite, error) {
	row := s.queryRow(ctx, s.db, `
		SELECT `+inviteColumns+` FROM invites
		WHERE inviter_id = ? AND active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`, inviterID)
	return scanInvite(row)
}

func scanInvite(row rowScanner) (model.Invite, error) {
	var (
		inv     model.Invite
		created int64
		active  int
	)
	err := row.Scan(&inv.Code, &inv.InviterID, &inv.ChannelID, &created, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invite{}, ErrNotFound
	}
	if err != nil {
		return model.Invite{}, fmt.Errorf("scan invite: %w", err)
	}
	inv.CreatedAt = fromUnix(created)
	inv.Active = active != 0
	return inv, nil
}
