package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tradewatch/internal/storage"
)

const (
	DefaultTradesPageLimit = 200
	MaxTradesPageLimit     = 250
)

// TradeHandler serves the trade query endpoints.
type TradeHandler struct {
	trades       storage.TradeStore
	defaultLimit int
	now          func() time.Time
	log          *logrus.Entry
}

// NewTradeHandler creates the handler. defaultLimit is clamped to MaxTradesPageLimit.
func NewTradeHandler(trades storage.TradeStore, defaultLimit int, log *logrus.Entry) *TradeHandler {
	if defaultLimit <= 0 {
		defaultLimit = DefaultTradesPageLimit
	}
	if defaultLimit > MaxTradesPageLimit {
		defaultLimit = MaxTradesPageLimit
	}
	return &TradeHandler{
		trades:       trades,
		defaultLimit: defaultLimit,
		now:          time.Now,
		log:          log.WithField("component", "trades"),
	}
}

// List handles GET /trades?status=open|closed|all&since_hours=&limit=
func (h *TradeHandler) List(c *gin.Context) {
	q := storage.TradeQuery{Status: c.DefaultQuery("status", storage.TradeStatusAll), Limit: h.defaultLimit}

	switch q.Status {
	case storage.TradeStatusOpen, storage.TradeStatusClosed, storage.TradeStatusAll:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open, closed or all"})
		return
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if limit > MaxTradesPageLimit {
			limit = MaxTradesPageLimit
		}
		q.Limit = limit
	}

	if v := c.Query("since_hours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since_hours must be a positive number"})
			return
		}
		q.ClosedSince = h.now().Add(-time.Duration(hours * float64(time.Hour)))
	}

	trades, err := h.trades.List(c.Request.Context(), q)
	if err != nil {
		h.log.WithError(err).Error("Failed to list trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// Get handles GET /trades/:trade_id and returns the latest row for the id.
func (h *TradeHandler) Get(c *gin.Context) {
	tradeID := c.Param("trade_id")

	trade, err := h.trades.Get(c.Request.Context(), tradeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trade not found"})
			return
		}
		h.log.WithError(err).WithField("trade_id", tradeID).Error("Failed to get trade")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get trade"})
		return
	}

	c.JSON(http.StatusOK, trade)
}
