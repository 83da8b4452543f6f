package models

import (
	"time"

	"github.com/lib/pq"
)

// RecipientPreference holds the allow-lists of one recipient. An empty list allows everything.
type RecipientPreference struct {
	RecipientID    string         `gorm:"column:recipient_id;primaryKey;size:128" json:"recipientId"`
	ChannelEnabled bool           `gorm:"column:channel_enabled;not null" json:"channelEnabled"`
	Symbols        pq.StringArray `gorm:"column:symbols;type:text[]" json:"symbols"`
	Timeframes     pq.StringArray `gorm:"column:timeframes;type:text[]" json:"timeframes"`
	Tiers          pq.StringArray `gorm:"column:tiers;type:text[]" json:"tiers"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (RecipientPreference) TableName() string {
	return "recipient_preferences"
}

// DefaultPreference is used for recipients that never saved preferences.
func DefaultPreference(recipientID string) *RecipientPreference {
	return &RecipientPreference{
		RecipientID:    recipientID,
		ChannelEnabled: true,
	}
}

// ChannelLink binds a recipient to a Telegram chat. Verified turns true once the
// one-time code is claimed from the chat side.
type ChannelLink struct {
	RecipientID   string     `gorm:"column:recipient_id;primaryKey;size:128" json:"recipientId"`
	ChatHandle    string     `gorm:"column:chat_handle;size:128;default:''" json:"chatHandle"`
	Verified      bool       `gorm:"column:verified;default:false" json:"verified"`
	Code          string     `gorm:"column:code;size:16;default:'';uniqueIndex:idx_channel_links_code,where:code <> ''" json:"-"`
	CodeExpiresAt *time.Time `gorm:"column:code_expires_at" json:"-"`
	LinkedAt      *time.Time `gorm:"column:linked_at" json:"linkedAt,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (ChannelLink) TableName() string {
	return "channel_links"
}
