package models

import (
	"time"
)

// SetupStat holds verified historical statistics for a setup type on an instrument.
// WinRate is a fraction in [0, 1].
type SetupStat struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Symbol       string    `gorm:"column:symbol;size:64;not null;uniqueIndex:idx_setup_stats_key" json:"symbol"`
	Timeframe    int       `gorm:"column:timeframe;not null;uniqueIndex:idx_setup_stats_key" json:"timeframe"`
	SetupType    string    `gorm:"column:setup_type;size:64;not null;default:'';uniqueIndex:idx_setup_stats_key" json:"setup_type"`
	WinRate      float64   `gorm:"column:win_rate" json:"win_rate"`
	ProfitFactor float64   `gorm:"column:profit_factor" json:"profit_factor"`
	SampleSize   int       `gorm:"column:sample_size" json:"sample_size"`
	Verified     bool      `gorm:"column:verified;default:false" json:"verified"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SetupStat) TableName() string {
	return "setup_stats"
}
