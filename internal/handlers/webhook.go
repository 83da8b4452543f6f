package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tradewatch/internal/lifecycle"
	"tradewatch/internal/metrics"
)

const maxWebhookBody = 64 << 10

// WebhookRequest is the TradingView alert body. Numeric and boolean fields
// also accept their string forms, which alert templates often produce.
type WebhookRequest struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  flexText  `json:"timeframe"`
	Direction  string    `json:"direction"`
	EntryPrice flexFloat `json:"entryPrice"`
	StopLoss   flexFloat `json:"stopLoss"`
	Risk       flexFloat `json:"risk"`
	Score      flexFloat `json:"score"`
	SetupType  string    `json:"setupType"`
	Price      flexFloat `json:"price"`
	TP1Hit     flexBool  `json:"tp1Hit"`
	TP2Hit     flexBool  `json:"tp2Hit"`
	SLHit      flexBool  `json:"slHit"`
	TP1Price   flexFloat `json:"tp1Price"`
	TP2Price   flexFloat `json:"tp2Price"`
	SLPrice    flexFloat `json:"slPrice"`
}

// Alert converts the request, keeping raw as the stored payload.
func (r WebhookRequest) Alert(raw []byte) lifecycle.Alert {
	return lifecycle.Alert{
		ID:         r.ID,
		Symbol:     r.Symbol,
		Timeframe:  string(r.Timeframe),
		Direction:  r.Direction,
		EntryPrice: float64(r.EntryPrice),
		StopLoss:   float64(r.StopLoss),
		Risk:       float64(r.Risk),
		Score:      float64(r.Score),
		SetupType:  r.SetupType,
		Price:      float64(r.Price),
		TP1Hit:     bool(r.TP1Hit),
		TP2Hit:     bool(r.TP2Hit),
		SLHit:      bool(r.SLHit),
		TP1Price:   float64(r.TP1Price),
		TP2Price:   float64(r.TP2Price),
		SLPrice:    float64(r.SLPrice),
		Payload:    json.RawMessage(raw),
	}
}

// AlertProcessor applies alerts to the trade lifecycle.
type AlertProcessor interface {
	Process(ctx context.Context, alert lifecycle.Alert) (*lifecycle.Result, error)
}

// WebhookHandler ingests trading alerts.
type WebhookHandler struct {
	engine AlertProcessor
	log    *logrus.Entry
}

func NewWebhookHandler(engine AlertProcessor, log *logrus.Entry) *WebhookHandler {
	return &WebhookHandler{engine: engine, log: log.WithField("component", "webhook")}
}

// Receive handles POST /webhook.
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	var req WebhookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	alert := req.Alert(raw)
	action := lifecycle.ActionEntry
	if alert.IsExit() {
		action = exitAction(alert)
	}
	log := h.log.WithFields(logrus.Fields{"trade_id": alert.ID, "action": action})

	result, err := h.engine.Process(c.Request.Context(), alert)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidTradeKey), errors.Is(err, lifecycle.ErrInvalidAlert):
			metrics.WebhookEvents.WithLabelValues(action, metrics.OutcomeRejected).Inc()
			log.WithError(err).Warn("Rejected webhook")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrTradeNotFound):
			metrics.WebhookEvents.WithLabelValues(action, metrics.OutcomeNotFound).Inc()
			log.Warn("Webhook for unknown trade")
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			metrics.WebhookEvents.WithLabelValues(action, metrics.OutcomeError).Inc()
			log.WithError(err).Error("Failed to process webhook")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process alert"})
		}
		return
	}

	if result.AutoClosed != nil {
		metrics.TradesClosed.WithLabelValues(string(result.AutoClosed.CloseReason)).Inc()
	}
	if result.Superseded != nil {
		metrics.TradesClosed.WithLabelValues(string(result.Superseded.CloseReason)).Inc()
	}

	if result.Ignored {
		metrics.WebhookEvents.WithLabelValues(result.Action, metrics.OutcomeIgnored).Inc()
		log.WithField("reason", result.Reason).Info("Webhook ignored")
		c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true, "reason": result.Reason})
		return
	}

	metrics.WebhookEvents.WithLabelValues(result.Action, metrics.OutcomeApplied).Inc()
	if result.Closed && result.Trade != nil {
		metrics.TradesClosed.WithLabelValues(string(result.Trade.CloseReason)).Inc()
	}

	resp := gin.H{"success": true, "action": result.Action, "closed": result.Closed}
	if result.Trade != nil {
		resp["trade"] = result.Trade
	}
	if result.AutoClosed != nil {
		resp["autoClosed"] = result.AutoClosed.TradeID
	}
	if result.Superseded != nil {
		resp["superseded"] = result.Superseded.TradeID
	}
	c.JSON(http.StatusOK, resp)
}

func exitAction(a lifecycle.Alert) string {
	if a.SLHit {
		return lifecycle.ActionStopLoss
	}
	return lifecycle.ActionTakeProfit
}

// flexFloat decodes a JSON number, a numeric string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexBool decodes true/false, their string forms, or 0/1.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" || s == "" {
		*f = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*f = flexBool(v)
	return nil
}

// flexText decodes a string or a bare number.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexText(s)
		return nil
	}
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexText(n.String())
	return nil
}
