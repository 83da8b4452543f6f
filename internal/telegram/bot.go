// Package telegram is the messaging channel: it sends notifications to
// Telegram chats and turns inbound bot commands into link claims.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidChat   = errors.New("invalid chat handle")
	ErrNotConfigured = errors.New("telegram bot not configured")
)

// Bot sends messages through the Telegram Bot API.
type Bot struct {
	api *telego.Bot
	log *logrus.Entry
}

// NewBot creates a bot for token. Extra options are passed to telego.
func NewBot(token string, log *logrus.Entry, opts ...telego.BotOption) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	opts = append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)
	api, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Bot{api: api, log: log.WithField("component", "telegram")}, nil
}

// Send delivers text to chatHandle, a numeric chat id or an @channel username.
func (b *Bot) Send(ctx context.Context, chatHandle, text string) error {
	chatID, err := ChatID(chatHandle)
	if err != nil {
		return err
	}
	msg, err := b.api.SendMessage(ctx, tu.Message(chatID, text))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	b.log.WithFields(logrus.Fields{"chat": chatHandle, "message_id": msg.MessageID}).Debug("Telegram message sent")
	return nil
}

// ChatID parses a stored chat handle.
func ChatID(handle string) (telego.ChatID, error) {
	handle = strings.TrimSpace(handle)
	if strings.HasPrefix(handle, "@") && len(handle) > 1 {
		return tu.Username(handle), nil
	}
	id, err := strconv.ParseInt(handle, 10, 64)
	if err != nil || id == 0 {
		return telego.ChatID{}, fmt.Errorf("%w: %q", ErrInvalidChat, handle)
	}
	return tu.ID(id), nil
}

// DisabledSender stands in when no bot token is configured. Every send
// fails with ErrNotConfigured, so records are marked failed.
type DisabledSender struct {
	Log *logrus.Entry
}

func (s DisabledSender) Send(_ context.Context, chatHandle, _ string) error {
	if s.Log != nil {
		s.Log.WithField("chat", chatHandle).Warn("Telegram disabled, message dropped")
	}
	return ErrNotConfigured
}
