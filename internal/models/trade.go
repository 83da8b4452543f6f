package models

import (
	"time"

	"gorm.io/datatypes"
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Tier is a coarse setup-quality label frozen on the trade at entry.
type Tier string

const (
	TierBase  Tier = "base"
	TierGood  Tier = "good"
	TierGreat Tier = "great"
	TierElite Tier = "elite"
)

// CloseReason records which path closed a trade.
type CloseReason string

const (
	CloseReasonSL             CloseReason = "sl"
	CloseReasonSLAfterPartial CloseReason = "sl-after-partial"
	CloseReasonTP1TP2         CloseReason = "tp1+tp2"
	CloseReasonAutoOpposite   CloseReason = "auto-opposite"
	CloseReasonSuperseded     CloseReason = "superseded"
)

// Trade is one position lifecycle row. A TradeID is unique among open rows only.
type Trade struct {
	ID             uint            `gorm:"primarykey" json:"-"`
	TradeID        string          `gorm:"column:trade_id;size:128;not null;index:idx_trades_trade_id;uniqueIndex:idx_trades_open_trade_id,where:closed_at IS NULL" json:"tradeId"`
	Symbol         string          `gorm:"column:symbol;size:64;not null;index:idx_trades_instrument" json:"symbol"`
	Timeframe      int             `gorm:"column:timeframe;not null;index:idx_trades_instrument" json:"timeframe"`
	TimeframeToken string          `gorm:"column:timeframe_token;size:16" json:"timeframeToken"`
	Direction      Direction       `gorm:"column:direction;size:8;not null;index:idx_trades_instrument" json:"direction"`
	EntryPrice     float64         `gorm:"column:entry_price" json:"entryPrice"`
	StopLoss       float64         `gorm:"column:stop_loss" json:"stopLoss"`
	Risk           float64         `gorm:"column:risk" json:"risk"`
	Score          float64         `gorm:"column:score" json:"score"`
	SetupType      string          `gorm:"column:setup_type;size:64" json:"setupType,omitempty"`
	StartedAt      time.Time       `gorm:"column:started_at;not null;index" json:"startedAt"`
	Timestamp      time.Time       `gorm:"column:timestamp;not null" json:"timestamp"`
	TP1Hit         bool            `gorm:"column:tp1_hit;default:false" json:"tp1Hit"`
	TP2Hit         bool            `gorm:"column:tp2_hit;default:false" json:"tp2Hit"`
	SLHit          bool            `gorm:"column:sl_hit;default:false" json:"slHit"`
	TP1Price       float64         `gorm:"column:tp1_price" json:"tp1Price,omitempty"`
	TP2Price       float64         `gorm:"column:tp2_price" json:"tp2Price,omitempty"`
	SLPrice        float64         `gorm:"column:sl_price" json:"slPrice,omitempty"`
	TP1Percent     *float64        `gorm:"column:tp1_percent" json:"tp1Percent,omitempty"`
	TP2Percent     *float64        `gorm:"column:tp2_percent" json:"tp2Percent,omitempty"`
	PnLPercent     *float64        `gorm:"column:pnl_percent" json:"pnlPercent,omitempty"`
	ClosedAt       *time.Time      `gorm:"column:closed_at;index" json:"closedAt"`
	CloseReason    CloseReason     `gorm:"column:close_reason;size:32;default:''" json:"closeReason,omitempty"`
	AutoClosed     bool            `gorm:"column:auto_closed;default:false" json:"autoClosed"`
	Tier           Tier            `gorm:"column:tier;size:16;default:'base'" json:"tier"`
	Payload        datatypes.JSON  `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsClosed reports whether the trade has reached its terminal state.
func (t *Trade) IsClosed() bool {
	return t.ClosedAt != nil
}

// TradePatch is a partial update to an open trade. Nil fields are left untouched.
type TradePatch struct {
	Timestamp   *time.Time
	TP1Hit      *bool
	TP2Hit      *bool
	SLHit       *bool
	TP1Price    *float64
	TP2Price    *float64
	SLPrice     *float64
	TP1Percent  *float64
	TP2Percent  *float64
	PnLPercent  *float64
	ClosedAt    *time.Time
	CloseReason *CloseReason
	AutoClosed  *bool
}

// Apply copies the set fields of the patch onto t.
func (p TradePatch) Apply(t *Trade) {
	if p.Timestamp != nil {
		t.Timestamp = *p.Timestamp
	}
	if p.TP1Hit != nil {
		t.TP1Hit = *p.TP1Hit
	}
	if p.TP2Hit != nil {
		t.TP2Hit = *p.TP2Hit
	}
	if p.SLHit != nil {
		t.SLHit = *p.SLHit
	}
	if p.TP1Price != nil {
		t.TP1Price = *p.TP1Price
	}
	if p.TP2Price != nil {
		t.TP2Price = *p.TP2Price
	}
	if p.SLPrice != nil {
		t.SLPrice = *p.SLPrice
	}
	if p.TP1Percent != nil {
		v := *p.TP1Percent
		t.TP1Percent = &v
	}
	if p.TP2Percent != nil {
		v := *p.TP2Percent
		t.TP2Percent = &v
	}
	if p.PnLPercent != nil {
		v := *p.PnLPercent
		t.PnLPercent = &v
	}
	if p.ClosedAt != nil {
		v := *p.ClosedAt
		t.ClosedAt = &v
	}
	if p.CloseReason != nil {
		t.CloseReason = *p.CloseReason
	}
	if p.AutoClosed != nil {
		t.AutoClosed = *p.AutoClosed
	}
}

// Columns returns the patch as a column map for gorm Updates.
func (p TradePatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Timestamp != nil {
		cols["timestamp"] = *p.Timestamp
	}
	if p.TP1Hit != nil {
		cols["tp1_hit"] = *p.TP1Hit
	}
	if p.TP2Hit != nil {
		cols["tp2_hit"] = *p.TP2Hit
	}
	if p.SLHit != nil {
		cols["sl_hit"] = *p.SLHit
	}
	if p.TP1Price != nil {
		cols["tp1_price"] = *p.TP1Price
	}
	if p.TP2Price != nil {
		cols["tp2_price"] = *p.TP2Price
	}
	if p.SLPrice != nil {
		cols["sl_price"] = *p.SLPrice
	}
	if p.TP1Percent != nil {
		cols["tp1_percent"] = *p.TP1Percent
	}
	if p.TP2Percent != nil {
		cols["tp2_percent"] = *p.TP2Percent
	}
	if p.PnLPercent != nil {
		cols["pnl_percent"] = *p.PnLPercent
	}
	if p.ClosedAt != nil {
		cols["closed_at"] = *p.ClosedAt
	}
	if p.CloseReason != nil {
		cols["close_reason"] = string(*p.CloseReason)
	}
	if p.AutoClosed != nil {
		cols["auto_closed"] = *p.AutoClosed
	}
	return cols
}
