package platform

import (
	"context"
	"log/slog"
)

// DirectMessage sends a DM and logs a failure at debug level. Members
// routinely have DMs closed, so a failure here is not a warning.
func DirectMessage(ctx context.Context, n Notifier, logger *slog.Logger, userID, text string) {
	if n == nil || userID == "" {
		return
	}
	if err := n.DirectMessage(ctx, userID, text); err != nil {
		logger.Debug("direct message not delivered", "user", userID, "error", err)
	}
}

// Post sends a channel message. An empty channelID means the channel is
// not configured and nothing is sent.
func Post(ctx context.Context, n Notifier, logger *slog.Logger, channelID, text string) {
	if n == nil || channelID == "" {
		return
	}
	if err := n.ChannelMessage(ctx, channelID, text); err != nil {
		logger.Warn("channel message not delivered", "channel", channelID, "error", err)
	}
}

// AddRole grants a role and logs a failure. An empty roleID is skipped.
func AddRole(ctx context.Context, r RoleEditor, logger *slog.Logger, guildID, userID, roleID string) {
	if r == nil || roleID == "" {
		return
	}
	if err := r.AddRole(ctx, guildID, userID, roleID); err != nil {
		logger.Warn("role not added", "user", userID, "role", roleID, "error", err)
	}
}

// RemoveRole revokes a role and logs a failure. An empty roleID is skipped.
func RemoveRole(ctx context.Context, r RoleEditor, logger *slog.Logger, guildID, userID, roleID string) {
	if r == nil || roleID == "" {
		return
	}
	if err := r.RemoveRole(ctx, guildID, userID, roleID); err != nil {
		logger.Warn("role not removed", "user", userID, "role", roleID, "error", err)
	}
}

// FirstChannel returns the first non-empty channel id.
func FirstChannel(ids ...string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}
