package routes

import (
	"github.com/gin-gonic/gin"

	"tradewatch/internal/handlers"
)

// SetupTradeRoutes sets up the trade query routes
func SetupTradeRoutes(r *gin.Engine, h *handlers.TradeHandler) {
	trades := r.Group("/trades")
	{
		trades.GET("", h.List)
		trades.GET("/:trade_id", h.Get)
	}
}
