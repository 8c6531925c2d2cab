// Package discord implements the platform contracts on a discordgo
// session and feeds gateway events into an events.Loop.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"

	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
)

// DiscordEpoch is the first millisecond of 2015, the zero of Discord ids.
const DiscordEpoch int64 = 1420070400000

// Intents are the gateway intents the bot needs.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildInvites

// boardColor is the embed accent of the leaderboard message.
const boardColor = 0xF1C40F

// Client is a platform.Platform backed by the Discord REST API.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
}

var _ platform.Platform = (*Client)(nil)

// New creates a session for a bot token. The gateway is not opened.
func New(token string, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord: empty bot token")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	s.Identify.Intents = Intents
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{session: s, logger: logger}, nil
}

// Session returns the underlying session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Open connects to the gateway.
func (c *Client) Open() error {
	return c.session.Open()
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) Member(ctx context.Context, guildID, userID string) (platform.Member, error) {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if isCode(err, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser) {
		return platform.Member{}, platform.ErrMemberNotFound
	}
	if err != nil {
		return platform.Member{}, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return toMember(m), nil
}

func (c *Client) Invites(ctx context.Context, guildID string) ([]model.InviteUse, error) {
	invs, err := c.session.GuildInvites(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list invites for %s: %w", guildID, err)
	}
	out := make([]model.InviteUse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInviteUse(inv))
	}
	return out, nil
}

func (c *Client) CreateInvite(ctx context.Context, channelID string) (string, error) {
	inv, err := c.session.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  0,
		MaxUses: 0,
		Unique:  true,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create invite in %s: %w", channelID, err)
	}
	return inv.Code, nil
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	if isCode(err, discordgo.ErrCodeUnknownMember) {
		return platform.ErrMemberNotFound
	}
	return err
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	if isCode(err, discordgo.ErrCodeUnknownMember) {
		return platform.ErrMemberNotFound
	}
	return err
}

func (c *Client) DirectMessage(ctx context.Context, userID, text string) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	_, err = c.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return err
}

func (c *Client) ChannelMessage(ctx context.Context, channelID, text string) error {
	_, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

// PublishBoard edits messageID in place, or posts a new message when
// messageID is empty or was deleted.
func (c *Client) PublishBoard(ctx context.Context, channelID, messageID string, board platform.Board) (string, error) {
	embed := toEmbed(board)
	if messageID != "" {
		msg, err := c.session.ChannelMessageEditEmbed(channelID, messageID, embed, discordgo.WithContext(ctx))
		switch {
		case err == nil:
			return msg.ID, nil
		case !isCode(err, discordgo.ErrCodeUnknownMessage):
			return "", fmt.Errorf("edit board %s: %w", messageID, err)
		}
		c.logger.Info("leaderboard message gone; posting a new one", "channel", channelID, "message", messageID)
	}
	msg, err := c.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("post board in %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func toEmbed(b platform.Board) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       b.Title,
		Description: b.Description,
		Color:       boardColor,
	}
	if b.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: b.Footer}
	}
	return e
}

func toMember(m *discordgo.Member) platform.Member {
	if m == nil || m.User == nil {
		return platform.Member{}
	}
	return platform.Member{
		ID:        m.User.ID,
		Roles:     m.Roles,
		CreatedAt: AccountCreated(m.User.ID),
		JoinedAt:  m.JoinedAt,
		Bot:       m.User.Bot,
	}
}

func toInviteUse(inv *discordgo.Invite) model.InviteUse {
	u := model.InviteUse{Code: inv.Code, Uses: inv.Uses}
	if inv.Inviter != nil {
		u.InviterID = inv.Inviter.ID
	}
	if inv.Channel != nil {
		u.ChannelID = inv.Channel.ID
	}
	return u
}

// AccountCreated decodes the creation time embedded in a Discord id. It
// returns the zero time for ids that do not parse.
func AccountCreated(id string) time.Time {
	sf, err := snowflake.ParseString(id)
	if err != nil || sf <= 0 {
		return time.Time{}
	}
	// ID.Time adds the library's epoch; swap it for Discord's.
	ms := sf.Time() - snowflake.Epoch + DiscordEpoch
	return time.UnixMilli(ms).UTC()
}

// isCode reports whether err is a Discord REST error with one of codes.
func isCode(err error, codes ...int) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return false
	}
	for _, c := range codes {
		if rest.Message.Code == c {
			return true
		}
	}
	return false
}
