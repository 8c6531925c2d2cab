// Package platform defines the community-platform collaborators the core
// depends on: member and role lookup, invite listing and creation, role
// edits, notifications and the leaderboard board message.
//
// The discord package implements every contract against the live
// platform; testutil.FakePlatform implements them in memory.
package platform

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/roach88/referral/internal/model"
)

// ErrMemberNotFound means the member is no longer in the guild. The core
// treats it as "left".
var ErrMemberNotFound = errors.New("platform: member not found")

// Member is a guild member as seen at lookup time.
type Member struct {
	ID        string
	Roles     []string
	CreatedAt time.Time // account creation
	JoinedAt  time.Time // guild join
	Bot       bool
}

// HasRole reports whether the member holds roleID. An empty roleID is
// never held.
func (m Member) HasRole(roleID string) bool {
	return roleID != "" && slices.Contains(m.Roles, roleID)
}

// Members looks up guild members.
type Members interface {
	Member(ctx context.Context, guildID, userID string) (Member, error)
}

// InviteLister fetches the live invite list with cumulative use counts.
type InviteLister interface {
	Invites(ctx context.Context, guildID string) ([]model.InviteUse, error)
}

// InviteCreator creates a non-expiring, unlimited-use invite in a channel.
type InviteCreator interface {
	CreateInvite(ctx context.Context, channelID string) (string, error)
}

// RoleEditor grants and revokes roles.
type RoleEditor interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

// Notifier delivers messages. Delivery is best-effort everywhere in the
// core: errors are logged and dropped.
type Notifier interface {
	DirectMessage(ctx context.Context, userID, text string) error
	ChannelMessage(ctx context.Context, channelID, text string) error
}

// Board is the rendered leaderboard message.
type Board struct {
	Title       string
	Description string
	Footer      string
}

// BoardPublisher creates or edits the pinned leaderboard message. An empty
// messageID (or one that no longer exists) creates a new message. Returns
// the id of the message that now holds the board.
type BoardPublisher interface {
	PublishBoard(ctx context.Context, channelID, messageID string, board Board) (string, error)
}

// Platform is every collaborator at once.
type Platform interface {
	Members
	InviteLister
	InviteCreator
	RoleEditor
	Notifier
	BoardPublisher
}

// Mention renders a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// RoleMention renders a role mention.
func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}
