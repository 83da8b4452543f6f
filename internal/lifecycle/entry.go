package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

func (e *Engine) processEntry(ctx context.Context, alert Alert) (*Result, error) {
	key, err := ResolveTradeKey(alert.ID)
	if err != nil {
		return nil, err
	}
	direction, err := ParseDirection(alert.Direction)
	if err != nil {
		return nil, err
	}
	if alert.EntryPrice < 0 {
		return nil, fmt.Errorf("%w: negative entry price", ErrInvalidAlert)
	}

	log := e.log.WithFields(logrus.Fields{
		"trade_id":  alert.ID,
		"symbol":    key.Symbol,
		"timeframe": key.TimeframeMinutes,
		"direction": direction,
	})

	// Any stored row counts, so a redelivered entry for a closed trade cannot
	// auto-close the position that replaced it.
	existing, err := e.trades.Get(ctx, alert.ID)
	switch {
	case err == nil:
		log.WithField("closed", existing.ClosedAt != nil).Info("Duplicate entry ignored")
		return ignored(ActionEntry, existing, ReasonDuplicate), nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("check trade %s: %w", alert.ID, err)
	}

	// Losing an auto-close is less harmful than losing the new trade record.
	autoClosed, err := e.autoCloseOpposite(ctx, key, direction, alert.EntryPrice)
	if err != nil {
		log.WithError(err).WithField("stage", "auto_close").Error("Auto-close of opposite trade failed, continuing with entry")
	}
	superseded, err := e.supersedeSameSide(ctx, key, direction, alert.ID, alert.EntryPrice)
	if err != nil {
		log.WithError(err).WithField("stage", "supersede").Error("Close of superseded trade failed, continuing with entry")
	}

	now := e.now()
	trade := &models.Trade{
		TradeID:        alert.ID,
		Symbol:         key.Symbol,
		Timeframe:      key.TimeframeMinutes,
		TimeframeToken: key.RawToken,
		Direction:      direction,
		EntryPrice:     alert.EntryPrice,
		StopLoss:       alert.StopLoss,
		Risk:           alert.Risk,
		Score:          alert.Score,
		SetupType:      alert.SetupType,
		StartedAt:      now,
		Timestamp:      now,
		Tier:           e.assignTier(ctx, key, alert.SetupType),
		Payload:        datatypes.JSON(alert.Payload),
	}

	if err := e.trades.PutIfAbsent(ctx, trade); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			log.Info("Duplicate entry lost insert race, ignored")
			res := ignored(ActionEntry, trade, ReasonDuplicate)
			res.AutoClosed = autoClosed
			res.Superseded = superseded
			return res, nil
		}
		return nil, fmt.Errorf("insert trade %s: %w", alert.ID, err)
	}

	log.WithField("tier", trade.Tier).Info("Trade opened")
	return &Result{Action: ActionEntry, Trade: trade, AutoClosed: autoClosed, Superseded: superseded}, nil
}

// supersedeSameSide closes an earlier open trade on the same side of the
// instrument so that a new entry never leaves two open rows per side. Legs
// that have not fired stay unhit; the PnL uses the new entry price in their
// place.
func (e *Engine) supersedeSameSide(ctx context.Context, key TradeKey, direction models.Direction, tradeID string, exitPrice float64) (*models.Trade, error) {
	prev, err := e.trades.LatestOpen(ctx, key.Symbol, key.TimeframeMinutes, direction)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find same-side trade: %w", err)
	}
	if prev.TradeID == tradeID {
		return nil, nil
	}

	log := e.log.WithFields(logrus.Fields{
		"trade_id":    prev.TradeID,
		"stage":       "supersede",
		"exit_price":  exitPrice,
		"replaced_by": tradeID,
	})

	now := e.now()
	patch := models.TradePatch{
		Timestamp:   timePtr(now),
		ClosedAt:    timePtr(now),
		AutoClosed:  boolPtr(true),
		CloseReason: reasonPtr(models.CloseReasonSuperseded),
	}
	if !prev.SLHit {
		tp1Price, tp2Price := prev.TP1Price, prev.TP2Price
		if !prev.TP1Hit {
			tp1Price = exitPrice
		}
		if !prev.TP2Hit {
			tp2Price = exitPrice
		}
		patch.PnLPercent = blendedPnL(prev.EntryPrice, tp1Price, tp2Price, prev.Direction)
	}

	ok, err := e.trades.UpdateWhereOpen(ctx, prev.TradeID, patch)
	if err != nil {
		return nil, fmt.Errorf("close superseded trade %s: %w", prev.TradeID, err)
	}
	if !ok {
		log.Info("Same-side trade closed concurrently, nothing to supersede")
		return nil, nil
	}

	patch.Apply(prev)
	log.Info("Same-side trade superseded")
	return prev, nil
}

// autoCloseOpposite closes the latest open trade on the other side of the
// instrument at the new entry price. A trade whose stop-loss already fired is
// left alone.
func (e *Engine) autoCloseOpposite(ctx context.Context, key TradeKey, direction models.Direction, exitPrice float64) (*models.Trade, error) {
	prev, err := e.trades.LatestOpen(ctx, key.Symbol, key.TimeframeMinutes, direction.Opposite())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find opposite trade: %w", err)
	}

	log := e.log.WithFields(logrus.Fields{
		"trade_id":      prev.TradeID,
		"stage":         "auto_close",
		"exit_price":    exitPrice,
		"tp1_hit":       prev.TP1Hit,
		"tp2_hit":       prev.TP2Hit,
		"incoming_side": direction,
	})
	if prev.SLHit {
		log.Info("Opposite trade already stopped out, skipping auto-close")
		return nil, nil
	}

	now := e.now()
	patch := models.TradePatch{
		Timestamp:  timePtr(now),
		ClosedAt:   timePtr(now),
		AutoClosed: boolPtr(true),
	}

	tp1Hit, tp2Hit := prev.TP1Hit, prev.TP2Hit
	tp1Price, tp2Price := prev.TP1Price, prev.TP2Price
	if exitPrice > 0 {
		if !tp1Hit {
			tp1Hit, tp1Price = true, exitPrice
			patch.TP1Hit = boolPtr(true)
			patch.TP1Price = floatPtr(exitPrice)
			patch.TP1Percent = pnlIfPriced(prev.EntryPrice, exitPrice, prev.Direction)
		}
		if !tp2Hit {
			tp2Hit, tp2Price = true, exitPrice
			patch.TP2Hit = boolPtr(true)
			patch.TP2Price = floatPtr(exitPrice)
			patch.TP2Percent = pnlIfPriced(prev.EntryPrice, exitPrice, prev.Direction)
		}
	}

	reason := models.CloseReasonAutoOpposite
	if tp1Hit && tp2Hit {
		reason = models.CloseReasonTP1TP2
	}
	patch.CloseReason = reasonPtr(reason)
	patch.PnLPercent = blendedPnL(prev.EntryPrice, tp1Price, tp2Price, prev.Direction)

	ok, err := e.trades.UpdateWhereOpen(ctx, prev.TradeID, patch)
	if err != nil {
		return nil, fmt.Errorf("close opposite trade %s: %w", prev.TradeID, err)
	}
	if !ok {
		log.Info("Opposite trade closed concurrently, nothing to auto-close")
		return nil, nil
	}

	patch.Apply(prev)
	log.WithField("close_reason", reason).Info("Opposite trade auto-closed")
	return prev, nil
}
