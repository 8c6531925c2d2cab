package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/store"
)

var (
	// ErrNoTokens means the member has no tokens left this period.
	ErrNoTokens = errors.New("no tokens available this period")
	// ErrNotAllowed means the member lacks the link creator role.
	ErrNotAllowed = errors.New("not allowed to create a personal invite link")
	// ErrChannelNotConfigured means invite_channel_id is unset.
	ErrChannelNotConfigured = errors.New("invite channel not configured")
)

// DefaultURLPrefix turns an invite code into a shareable link.
const DefaultURLPrefix = "https://discord.gg/"

// Link is a member's personal referral link.
type Link struct {
	Code       string `json:"code"`
	URL        string `json:"url"`
	TokensLeft int    `json:"tokens_left"`
	Created    bool   `json:"created"`
}

// LinkPlatform is what Links needs from the platform.
type LinkPlatform interface {
	platform.Members
	platform.InviteCreator
}

// Links hands out personal referral links: one active invite per inviter,
// enforced by looking up the active invite before creating one.
type Links struct {
	Store     *store.Store
	Ledger    *ledger.Ledger
	Config    *config.Resolver
	Platform  LinkPlatform
	Tracker   *Tracker
	Clock     clock.Clock
	Logger    *slog.Logger
	URLPrefix string
}

// GetOrCreate returns the inviter's active link, creating one if needed.
// Creation requires the link creator role (when configured) and at least
// one token. Creating a link does not consume a token; the join does.
func (l *Links) GetOrCreate(ctx context.Context, guildID, inviterID string) (Link, error) {
	tokens, err := l.Ledger.Balance(ctx, inviterID)
	if err != nil {
		return Link{}, err
	}

	existing, err := l.Store.ActiveInviteByInviter(ctx, inviterID)
	switch {
	case err == nil:
		return l.link(existing.Code, tokens, false), nil
	case !errors.Is(err, store.ErrNotFound):
		return Link{}, err
	}

	if role := l.Config.String(ctx, config.KeyLinkCreatorRoleID); role != "" {
		m, err := l.Platform.Member(ctx, guildID, inviterID)
		if err != nil {
			return Link{}, fmt.Errorf("look up %s: %w", inviterID, err)
		}
		if !m.HasRole(role) {
			return Link{}, ErrNotAllowed
		}
	}

	if tokens <= 0 {
		return Link{}, ErrNoTokens
	}

	channelID := l.Config.String(ctx, config.KeyInviteChannelID)
	if channelID == "" {
		return Link{}, ErrChannelNotConfigured
	}

	code, err := l.Platform.CreateInvite(ctx, channelID)
	if err != nil {
		return Link{}, fmt.Errorf("create invite in %s: %w", channelID, err)
	}
	err = l.Store.UpsertInvite(ctx, model.Invite{
		Code:      code,
		InviterID: inviterID,
		ChannelID: channelID,
		CreatedAt: l.Clock.Now(),
		Active:    true,
	})
	if err != nil {
		return Link{}, err
	}
	if l.Tracker != nil {
		l.Tracker.OnInviteCreated(guildID, code, 0)
	}

	l.logger().Info("invite link created", "inviter", inviterID, "code", code)
	return l.link(code, tokens, true), nil
}

// Deactivate marks a removed invite inactive. Unknown codes are ignored.
func (l *Links) Deactivate(ctx context.Context, code string) error {
	found, err := l.Store.SetInviteActive(ctx, code, false)
	if err != nil {
		return err
	}
	if found {
		l.logger().Info("invite deactivated", "code", code)
	}
	return nil
}

func (l *Links) link(code string, tokens int, created bool) Link {
	prefix := l.URLPrefix
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	return Link{Code: code, URL: prefix + code, TokensLeft: tokens, Created: created}
}

func (l *Links) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
