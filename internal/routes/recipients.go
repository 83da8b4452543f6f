package routes

import (
	"github.com/gin-gonic/gin"

	"tradewatch/internal/handlers"
)

// SetupRecipientRoutes sets up channel linking and preference routes
func SetupRecipientRoutes(r *gin.Engine, h *handlers.RecipientHandler) {
	recipient := r.Group("/recipients/:recipient_id")
	{
		recipient.POST("/link-code", h.RequestLinkCode)
		recipient.GET("/link-status", h.LinkStatus)

		recipient.GET("/preferences", h.GetPreferences)
		recipient.PUT("/preferences", h.PutPreferences)
	}
}
