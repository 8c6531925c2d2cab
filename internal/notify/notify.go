// Package notify carries channel posts to more than one destination.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/roach88/referral/internal/platform"
)

// Fanout delivers every message to each notifier in order. A failing
// notifier does not stop delivery to the rest; all errors are joined.
type Fanout []platform.Notifier

func (f Fanout) DirectMessage(ctx context.Context, userID, text string) error {
	var errs []error
	for _, n := range f {
		if err := n.DirectMessage(ctx, userID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) ChannelMessage(ctx context.Context, channelID, text string) error {
	var errs []error
	for _, n := range f {
		if err := n.ChannelMessage(ctx, channelID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// mirrored is a Platform whose notifications also go to mirrors.
type mirrored struct {
	platform.Platform
	fan Fanout
}

func (m mirrored) DirectMessage(ctx context.Context, userID, text string) error {
	return m.fan.DirectMessage(ctx, userID, text)
}

func (m mirrored) ChannelMessage(ctx context.Context, channelID, text string) error {
	return m.fan.ChannelMessage(ctx, channelID, text)
}

// WithMirrors returns p with its notifications also delivered to mirrors.
// With no mirrors p is returned unchanged.
func WithMirrors(p platform.Platform, mirrors ...platform.Notifier) platform.Platform {
	if len(mirrors) == 0 {
		return p
	}
	return mirrored{Platform: p, fan: append(Fanout{p}, mirrors...)}
}

// sender is the part of tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram mirrors channel posts into one Telegram chat. Direct messages
// are addressed to platform users and are not mirrored.
type Telegram struct {
	bot    sender
	chatID int64
	logger *slog.Logger
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newTelegram(bot, chatID, logger), nil
}

func newTelegram(bot sender, chatID int64, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger}
}

func (t *Telegram) DirectMessage(ctx context.Context, userID, text string) error {
	return nil
}

// ChannelMessage sends text to the chat, tagged with the source channel.
func (t *Telegram) ChannelMessage(ctx context.Context, channelID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("[#%s]\n%s", channelID, text))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", t.chatID, err)
	}
	t.logger.Debug("mirrored to telegram", "chat", t.chatID, "channel", channelID)
	return nil
}
