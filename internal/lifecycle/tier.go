package lifecycle

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

const (
	eliteWinRate      = 0.70
	eliteProfitFactor = 4.0
	greatBlend        = 55.0
	goodBlend         = 45.0
)

// TierFor derives the tier from verified setup statistics. Missing or
// unverified statistics yield the base tier.
func TierFor(stat *models.SetupStat) models.Tier {
	if stat == nil || !stat.Verified {
		return models.TierBase
	}
	if stat.WinRate >= eliteWinRate && stat.ProfitFactor >= eliteProfitFactor {
		return models.TierElite
	}

	blend := stat.WinRate*100*0.65 + stat.ProfitFactor*10*0.35
	switch {
	case blend >= greatBlend:
		return models.TierGreat
	case blend >= goodBlend:
		return models.TierGood
	default:
		return models.TierBase
	}
}

// assignTier never fails the entry; lookup errors fall back to the base tier.
func (e *Engine) assignTier(ctx context.Context, key TradeKey, setupType string) models.Tier {
	if e.stats == nil {
		return models.TierBase
	}

	stat, err := e.stats.FindSetupStat(ctx, key.Symbol, key.TimeframeMinutes, setupType)
	if errors.Is(err, storage.ErrNotFound) {
		return models.TierBase
	}
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"symbol":     key.Symbol,
			"timeframe":  key.TimeframeMinutes,
			"setup_type": setupType,
			"stage":      "tier_lookup",
		}).Warn("Setup stats lookup failed, using base tier")
		return models.TierBase
	}
	return TierFor(stat)
}
