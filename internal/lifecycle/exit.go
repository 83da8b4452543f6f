package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// errNotOpen means a conditional update found the row already closed.
var errNotOpen = errors.New("trade no longer open")

type leg int

const (
	legTP1 leg = iota + 1
	legTP2
)

func (l leg) String() string {
	if l == legTP1 {
		return "tp1"
	}
	return "tp2"
}

func (e *Engine) processExit(ctx context.Context, alert Alert) (*Result, error) {
	if _, err := ResolveTradeKey(alert.ID); err != nil {
		return nil, err
	}

	trade, err := e.trades.Get(ctx, alert.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, alert.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load trade %s: %w", alert.ID, err)
	}

	action := ActionTakeProfit
	if alert.SLHit {
		action = ActionStopLoss
	}

	log := e.log.WithFields(logrus.Fields{
		"trade_id": alert.ID,
		"tp1_hit":  alert.TP1Hit,
		"tp2_hit":  alert.TP2Hit,
		"sl_hit":   alert.SLHit,
	})

	if trade.IsClosed() {
		log.Info("Update for closed trade ignored")
		return ignored(action, trade, ReasonAlreadyClosed), nil
	}
	if trade.SLHit && (alert.TP1Hit || alert.TP2Hit) {
		log.Info("Take-profit after stop-loss ignored")
		return ignored(action, trade, ReasonSLBlocksTP), nil
	}

	if alert.SLHit {
		return e.applyStopLoss(ctx, log, trade, alert)
	}
	return e.applyTakeProfit(ctx, log, trade, alert)
}

func (e *Engine) applyStopLoss(ctx context.Context, log *logrus.Entry, trade *models.Trade, alert Alert) (*Result, error) {
	now := e.now()
	price := firstPositive(alert.SLPrice, alert.Price)

	reason := models.CloseReasonSL
	if trade.TP1Hit || trade.TP2Hit {
		reason = models.CloseReasonSLAfterPartial
	}

	patch := models.TradePatch{
		Timestamp:   timePtr(now),
		SLHit:       boolPtr(true),
		PnLPercent:  pnlIfPriced(trade.EntryPrice, price, trade.Direction),
		ClosedAt:    timePtr(now),
		CloseReason: reasonPtr(reason),
	}
	if price > 0 {
		patch.SLPrice = floatPtr(price)
	}

	ok, err := e.trades.UpdateWhereOpen(ctx, trade.TradeID, patch)
	if err != nil {
		return nil, fmt.Errorf("record stop-loss for %s: %w", trade.TradeID, err)
	}
	if !ok {
		log.Info("Stop-loss lost race with a concurrent close, ignored")
		return ignored(ActionStopLoss, trade, ReasonAlreadyClosed), nil
	}

	patch.Apply(trade)
	log.WithFields(logrus.Fields{"close_reason": reason, "sl_price": price}).Info("Trade stopped out")
	return &Result{Action: ActionStopLoss, Closed: true, Trade: trade}, nil
}

func (e *Engine) applyTakeProfit(ctx context.Context, log *logrus.Entry, trade *models.Trade, alert Alert) (*Result, error) {
	now := e.now()
	res := &Result{Action: ActionTakeProfit, Trade: trade}

	// Leg prices written by this request; zero when the leg was not written here.
	var read1, read2 float64
	legs := []struct {
		leg   leg
		flag  bool
		price float64
		out   *float64
	}{
		{legTP1, alert.TP1Hit, firstPositive(alert.TP1Price, alert.Price), &read1},
		{legTP2, alert.TP2Hit, firstPositive(alert.TP2Price, alert.Price), &read2},
	}

	wrote := false
	for _, l := range legs {
		if !l.flag {
			continue
		}
		if legHit(trade, l.leg) {
			log.WithField("leg", l.leg.String()).Info("Leg already recorded, keeping first price")
			continue
		}
		closed, err := e.recordLeg(ctx, trade, l.leg, l.price, now)
		if errors.Is(err, errNotOpen) {
			log.WithField("leg", l.leg.String()).Info("Leg update lost race with a concurrent close, ignored")
			return ignored(ActionTakeProfit, trade, ReasonAlreadyClosed), nil
		}
		if err != nil {
			return nil, err
		}
		*l.out = l.price
		wrote = true
		res.Closed = res.Closed || closed
	}

	if !res.Closed {
		closed, err := e.closeIfBothLegs(ctx, log, trade, read1, read2, now)
		if err != nil {
			return nil, err
		}
		res.Closed = closed
	}

	if !wrote && !res.Closed {
		res.Ignored = true
		res.Reason = ReasonLegAlreadyHit
		return res, nil
	}
	if res.Closed {
		log.WithFields(logrus.Fields{"close_reason": trade.CloseReason, "pnl_percent": trade.PnLPercent}).Info("Trade closed on both take-profit legs")
	}
	return res, nil
}

// recordLeg writes one take-profit leg and, when the other leg is already hit,
// follows up with the blended close. The two writes are separate conditional
// updates; closeIfBothLegs repairs a close lost between them.
func (e *Engine) recordLeg(ctx context.Context, trade *models.Trade, l leg, price float64, now time.Time) (bool, error) {
	patch := models.TradePatch{Timestamp: timePtr(now)}
	pct := pnlIfPriced(trade.EntryPrice, price, trade.Direction)
	if l == legTP1 {
		patch.TP1Hit = boolPtr(true)
		patch.TP1Percent = pct
		if price > 0 {
			patch.TP1Price = floatPtr(price)
		}
	} else {
		patch.TP2Hit = boolPtr(true)
		patch.TP2Percent = pct
		if price > 0 {
			patch.TP2Price = floatPtr(price)
		}
	}

	ok, err := e.trades.UpdateWhereOpen(ctx, trade.TradeID, patch)
	if err != nil {
		return false, fmt.Errorf("record %s for %s: %w", l, trade.TradeID, err)
	}
	if !ok {
		return false, errNotOpen
	}
	patch.Apply(trade)

	if !(trade.TP1Hit && trade.TP2Hit) {
		return false, nil
	}
	return e.closeBlended(ctx, trade, trade.TP1Price, trade.TP2Price, now)
}

// closeIfBothLegs re-reads the row and closes it if both legs are hit but it
// is still open. Prices written by this request win over stored ones.
func (e *Engine) closeIfBothLegs(ctx context.Context, log *logrus.Entry, trade *models.Trade, read1, read2 float64, now time.Time) (bool, error) {
	current, err := e.trades.Get(ctx, trade.TradeID)
	if err != nil {
		log.WithError(err).WithField("stage", "final_close_check").Warn("Re-read failed, checking in-memory row")
		current = trade
	}
	if current.IsClosed() || !(current.TP1Hit && current.TP2Hit) {
		*trade = *current
		return false, nil
	}

	tp1 := firstPositive(read1, current.TP1Price)
	tp2 := firstPositive(read2, current.TP2Price)
	*trade = *current
	closed, err := e.closeBlended(ctx, trade, tp1, tp2, now)
	if err == nil && closed {
		log.WithField("stage", "final_close_check").Warn("Repaired missed close with both legs hit")
	}
	return closed, err
}

func (e *Engine) closeBlended(ctx context.Context, trade *models.Trade, tp1Price, tp2Price float64, now time.Time) (bool, error) {
	patch := models.TradePatch{
		Timestamp:   timePtr(now),
		ClosedAt:    timePtr(now),
		CloseReason: reasonPtr(models.CloseReasonTP1TP2),
		PnLPercent:  blendedPnL(trade.EntryPrice, tp1Price, tp2Price, trade.Direction),
	}

	ok, err := e.trades.UpdateWhereOpen(ctx, trade.TradeID, patch)
	if err != nil {
		return false, fmt.Errorf("close %s on both legs: %w", trade.TradeID, err)
	}
	if !ok {
		return false, nil
	}
	patch.Apply(trade)
	return true, nil
}

func legHit(t *models.Trade, l leg) bool {
	if l == legTP1 {
		return t.TP1Hit
	}
	return t.TP2Hit
}
