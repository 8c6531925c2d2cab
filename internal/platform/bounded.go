package platform

import (
	"context"
	"time"

	"github.com/roach88/referral/internal/model"
)

// DefaultTimeout bounds a platform call when none is configured.
const DefaultTimeout = 10 * time.Second

// Bounded wraps a Platform so that every call carries a timeout. A call
// that times out returns context.DeadlineExceeded, which callers treat
// like any other external-call failure.
type Bounded struct {
	inner   Platform
	timeout time.Duration
}

// NewBounded wraps p. A non-positive timeout uses DefaultTimeout.
func NewBounded(p Platform, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bounded{inner: p, timeout: timeout}
}

func (b *Bounded) Member(ctx context.Context, guildID, userID string) (Member, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.Member(ctx, guildID, userID)
}

func (b *Bounded) Invites(ctx context.Context, guildID string) ([]model.InviteUse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.Invites(ctx, guildID)
}

func (b *Bounded) CreateInvite(ctx context.Context, channelID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.CreateInvite(ctx, channelID)
}

func (b *Bounded) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.AddRole(ctx, guildID, userID, roleID)
}

func (b *Bounded) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.RemoveRole(ctx, guildID, userID, roleID)
}

func (b *Bounded) DirectMessage(ctx context.Context, userID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.DirectMessage(ctx, userID, text)
}

func (b *Bounded) ChannelMessage(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.ChannelMessage(ctx, channelID, text)
}

func (b *Bounded) PublishBoard(ctx context.Context, channelID, messageID string, board Board) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.PublishBoard(ctx, channelID, messageID, board)
}
