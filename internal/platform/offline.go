package platform

import (
	"context"
	"errors"

	"github.com/roach88/referral/internal/model"
)

// ErrOffline is returned by Offline for every call.
var ErrOffline = errors.New("platform not connected")

// Offline is a Platform for commands run without a bot connection. Member
// lookups fail with ErrOffline, which callers treat as transient, so a
// sweep run offline skips member checks instead of failing referrals.
type Offline struct{}

var _ Platform = Offline{}

func (Offline) Member(ctx context.Context, guildID, userID string) (Member, error) {
	return Member{}, ErrOffline
}

func (Offline) Invites(ctx context.Context, guildID string) ([]model.InviteUse, error) {
	return nil, ErrOffline
}

func (Offline) CreateInvite(ctx context.Context, channelID string) (string, error) {
	return "", ErrOffline
}

func (Offline) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return ErrOffline
}

func (Offline) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return ErrOffline
}

func (Offline) DirectMessage(ctx context.Context, userID, text string) error {
	return ErrOffline
}

func (Offline) ChannelMessage(ctx context.Context, channelID, text string) error {
	return ErrOffline
}

func (Offline) PublishBoard(ctx context.Context, channelID, messageID string, board Board) (string, error) {
	return "", ErrOffline
}
