package lifecycle

import (
	"github.com/shopspring/decimal"

	"tradewatch/internal/models"
)

// pnlPrecision is the number of decimal places PnL percentages are rounded to.
const pnlPrecision = 2

var hundred = decimal.NewFromInt(100)

// PnL returns the percentage return of a position from entry to exit.
// It returns 0 when either price is missing.
func PnL(entryPrice, exitPrice float64, direction models.Direction) float64 {
	if entryPrice <= 0 || exitPrice <= 0 {
		return 0
	}
	return pnl(decimal.NewFromFloat(entryPrice), decimal.NewFromFloat(exitPrice), direction)
}

// MeanPrice is the exit price used for a trade closed through both take-profit legs.
func MeanPrice(tp1Price, tp2Price float64) float64 {
	f, _ := mean(decimal.NewFromFloat(tp1Price), decimal.NewFromFloat(tp2Price)).Float64()
	return f
}

// pnlIfPriced returns the PnL only when both prices are known.
func pnlIfPriced(entryPrice, exitPrice float64, direction models.Direction) *float64 {
	if entryPrice <= 0 || exitPrice <= 0 {
		return nil
	}
	v := PnL(entryPrice, exitPrice, direction)
	return &v
}

// blendedPnL returns the two-leg PnL when both leg prices are known.
// The mean is kept exact so the result is rounded once.
func blendedPnL(entryPrice, tp1Price, tp2Price float64, direction models.Direction) *float64 {
	if entryPrice <= 0 || tp1Price <= 0 || tp2Price <= 0 {
		return nil
	}
	exit := mean(decimal.NewFromFloat(tp1Price), decimal.NewFromFloat(tp2Price))
	v := pnl(decimal.NewFromFloat(entryPrice), exit, direction)
	return &v
}

func pnl(entry, exit decimal.Decimal, direction models.Direction) float64 {
	move := exit.Sub(entry)
	if direction == models.DirectionShort {
		move = entry.Sub(exit)
	}
	f, _ := move.Div(entry).Mul(hundred).Round(pnlPrecision).Float64()
	return f
}

func mean(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b).Div(decimal.NewFromInt(2))
}
