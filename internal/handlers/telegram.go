package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telego.Update) string
}

// TelegramHandler receives updates forwarded by the Telegram Bot API.
type TelegramHandler struct {
	updates UpdateHandler
	log     *logrus.Entry
}

func NewTelegramHandler(updates UpdateHandler, log *logrus.Entry) *TelegramHandler {
	return &TelegramHandler{updates: updates, log: log.WithField("component", "telegram_webhook")}
}

// Webhook handles POST /telegram/webhook. It always answers 200 so Telegram
// does not redeliver the update.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	var upd telego.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.log.WithError(err).Warn("Ignoring undecodable Telegram update")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	h.updates.HandleUpdate(c.Request.Context(), upd)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
