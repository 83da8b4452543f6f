package routes

import (
	"github.com/gin-gonic/gin"

	"tradewatch/internal/handlers"
)

// SetupTelegramRoutes sets up the Telegram update webhook
func SetupTelegramRoutes(r *gin.Engine, h *handlers.TelegramHandler) {
	r.POST("/telegram/webhook", h.Webhook)
}
