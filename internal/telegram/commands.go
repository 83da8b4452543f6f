package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"

	"tradewatch/internal/directory"
	"tradewatch/internal/models"
)

// Replies sent back to the chat.
const (
	ReplyLinked      = "Linked. Trade alerts will be delivered to this chat."
	ReplyUnknownCode = "That code is not valid. Request a new link code and try again."
	ReplyExpiredCode = "That code has expired. Request a new link code and try again."
	ReplyUsage       = "Send /link <code> with the code shown in your dashboard to receive alerts here."
	ReplyFailed      = "Linking failed, please try again in a moment."
)

// Claimer claims link codes.
type Claimer interface {
	ClaimCode(ctx context.Context, code, chatHandle string) (*models.ChannelLink, error)
}

// Replier sends a reply to a chat.
type Replier interface {
	Send(ctx context.Context, chatHandle, text string) error
}

// CommandHandler handles /start and /link updates.
type CommandHandler struct {
	claims Claimer
	reply  Replier
	log    *logrus.Entry
}

func NewCommandHandler(claims Claimer, reply Replier, log *logrus.Entry) *CommandHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CommandHandler{claims: claims, reply: reply, log: log.WithField("component", "telegram_commands")}
}

// HandleUpdate processes one update and returns the reply it sent, if any.
// Errors from the directory become replies; nothing is returned to the webhook caller.
func (h *CommandHandler) HandleUpdate(ctx context.Context, upd telego.Update) string {
	msg := upd.Message
	if msg == nil || msg.Text == "" {
		return ""
	}

	cmd, arg, ok := ParseCommand(msg.Text)
	if !ok || (cmd != "start" && cmd != "link") {
		return ""
	}

	chat := strconv.FormatInt(msg.Chat.ID, 10)
	log := h.log.WithFields(logrus.Fields{"chat": chat, "command": cmd})

	var reply string
	switch {
	case arg == "":
		reply = ReplyUsage
	default:
		reply = h.claim(ctx, log, arg, chat)
	}

	if err := h.reply.Send(ctx, chat, reply); err != nil {
		log.WithError(err).Warn("Failed to send command reply")
	}
	return reply
}

func (h *CommandHandler) claim(ctx context.Context, log *logrus.Entry, code, chat string) string {
	link, err := h.claims.ClaimCode(ctx, code, chat)
	switch {
	case err == nil:
		log.WithField("recipient_id", link.RecipientID).Info("Chat linked to recipient")
		return ReplyLinked
	case errors.Is(err, directory.ErrCodeUnknown):
		return ReplyUnknownCode
	case errors.Is(err, directory.ErrCodeExpired):
		return ReplyExpiredCode
	default:
		log.WithError(err).Error("Link claim failed")
		return ReplyFailed
	}
}

// ParseCommand splits "/cmd@Bot arg" into its lower-cased command and first argument.
func ParseCommand(text string) (cmd, arg string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", "", false
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(cmd), arg, true
}
