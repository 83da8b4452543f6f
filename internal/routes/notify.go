package routes

import (
	"github.com/gin-gonic/gin"

	"tradewatch/internal/handlers"
	"tradewatch/internal/middleware"
)

// SetupNotifyRoutes sets up the internal notification relay routes
func SetupNotifyRoutes(r *gin.Engine, h *handlers.NotifyHandler, relaySecret string) {
	relay := r.Group("/notify", middleware.RelaySecret(relaySecret))
	{
		relay.POST("/entry", h.Entry)
		relay.POST("/followup", h.FollowUp)
	}
}
