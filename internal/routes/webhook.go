package routes

import (
	"github.com/gin-gonic/gin"

	"tradewatch/internal/handlers"
	"tradewatch/internal/middleware"
)

// SetupWebhookRoutes sets up the TradingView alert ingestion route
func SetupWebhookRoutes(r *gin.Engine, h *handlers.WebhookHandler, token string, limit middleware.RateLimiterConfig) {
	r.POST("/webhook",
		middleware.RateLimiter(limit),
		middleware.WebhookToken(token),
		h.Receive,
	)
}
