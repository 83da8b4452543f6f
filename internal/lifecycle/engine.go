// Package lifecycle applies trading-alert webhooks to the trade lifecycle:
// entries open positions (closing the opposite side and any earlier trade on
// the same side first), and TP1/TP2/SL updates move an open position to its
// terminal state.
//
// There is no per-trade lock. Every mutation is a conditional update on the
// open row, and take-profit processing ends with a re-read that closes a
// trade whose two legs are both hit but which is still open.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// Alert is one inbound webhook event.
type Alert struct {
	ID         string
	Symbol     string
	Timeframe  string
	Direction  string
	EntryPrice float64
	StopLoss   float64
	Risk       float64
	Score      float64
	SetupType  string
	Price      float64
	TP1Hit     bool
	TP2Hit     bool
	SLHit      bool
	TP1Price   float64
	TP2Price   float64
	SLPrice    float64
	Payload    json.RawMessage
}

// IsExit reports whether the alert updates an existing trade rather than opening one.
func (a Alert) IsExit() bool {
	return a.TP1Hit || a.TP2Hit || a.SLHit
}

// Actions reported in Result.
const (
	ActionEntry      = "entry"
	ActionStopLoss   = "sl"
	ActionTakeProfit = "tp"
)

// Reasons an accepted alert was ignored.
const (
	ReasonDuplicate     = "duplicate"
	ReasonAlreadyClosed = "already_closed"
	ReasonSLBlocksTP    = "sl_blocks_tp"
	ReasonLegAlreadyHit = "leg_already_hit"
)

// Result describes what Process did with an alert.
type Result struct {
	Action     string
	Ignored    bool
	Reason     string
	Closed     bool
	Trade      *models.Trade
	AutoClosed *models.Trade
	Superseded *models.Trade
}

// Engine is the trade lifecycle state machine.
type Engine struct {
	trades storage.TradeStore
	stats  storage.SetupStatStore
	log    *logrus.Entry
	now    func() time.Time
}

// NewEngine creates an engine over the given stores. stats may be nil, in
// which case every trade gets the base tier.
func NewEngine(trades storage.TradeStore, stats storage.SetupStatStore, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		trades: trades,
		stats:  stats,
		log:    log.WithField("component", "lifecycle"),
		now:    time.Now,
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Process applies one alert. Client errors wrap ErrInvalidTradeKey or
// ErrInvalidAlert, unknown trades wrap ErrTradeNotFound, anything else is a
// store failure the caller should retry.
func (e *Engine) Process(ctx context.Context, alert Alert) (*Result, error) {
	if alert.IsExit() {
		return e.processExit(ctx, alert)
	}
	return e.processEntry(ctx, alert)
}

func ignored(action string, trade *models.Trade, reason string) *Result {
	return &Result{Action: action, Ignored: true, Reason: reason, Trade: trade}
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func reasonPtr(v models.CloseReason) *models.CloseReason { return &v }
