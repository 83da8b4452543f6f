package models

import (
	"time"
)

// AlertTypeEntry is the alert type of the first notification sent for a trade.
const AlertTypeEntry = "ENTRY"

const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationRecord marks a notification as attempted for one recipient.
// (trade_id, recipient_id, alert_type) is unique; the first insert wins.
type NotificationRecord struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	TradeID        string    `gorm:"column:trade_id;size:128;not null;uniqueIndex:idx_notification_records_key" json:"trade_id"`
	RecipientID    string    `gorm:"column:recipient_id;size:128;not null;uniqueIndex:idx_notification_records_key" json:"recipient_id"`
	AlertType      string    `gorm:"column:alert_type;size:32;not null;uniqueIndex:idx_notification_records_key" json:"alert_type"`
	IdempotencyKey string    `gorm:"column:idempotency_key;size:255" json:"idempotency_key"`
	Status         string    `gorm:"column:status;size:16;default:'sent'" json:"status"`
	Error          string    `gorm:"column:error;type:text;default:''" json:"error,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (NotificationRecord) TableName() string {
	return "notification_records"
}

// NotificationKey is an advisory, process-wide idempotency key.
type NotificationKey struct {
	Key       string    `gorm:"column:key;primaryKey;size:255" json:"key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (NotificationKey) TableName() string {
	return "notification_keys"
}
