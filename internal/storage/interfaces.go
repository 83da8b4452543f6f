package storage

import (
	"context"
	"time"

	"tradewatch/internal/models"
)

// Trade list filters.
const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
	TradeStatusAll    = "all"
)

// TradeQuery filters List. ClosedSince limits closed rows to those closed at or after it;
// open rows are always included when Status allows them.
type TradeQuery struct {
	Status      string
	ClosedSince time.Time
	Limit       int
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Get returns the most recent row for tradeID, open or closed. Returns ErrNotFound if none.
	Get(ctx context.Context, tradeID string) (*models.Trade, error)

	// GetOpen returns the open row for tradeID. Returns ErrNotFound if none is open.
	GetOpen(ctx context.Context, tradeID string) (*models.Trade, error)

	// PutIfAbsent inserts t. Returns ErrDuplicateKey if an open row with the same TradeID exists.
	PutIfAbsent(ctx context.Context, t *models.Trade) error

	// UpdateWhereOpen applies patch to the open row for tradeID.
	// Returns false when no open row matched.
	UpdateWhereOpen(ctx context.Context, tradeID string, patch models.TradePatch) (bool, error)

	// LatestOpen returns the most recently started open trade for the instrument.
	// Returns ErrNotFound if none.
	LatestOpen(ctx context.Context, symbol string, timeframe int, direction models.Direction) (*models.Trade, error)

	// List returns trades newest first.
	List(ctx context.Context, q TradeQuery) ([]*models.Trade, error)
}

// SetupStatStore provides read access to verified setup statistics.
type SetupStatStore interface {
	// FindSetupStat returns the statistics row for the setup. Returns ErrNotFound if none.
	FindSetupStat(ctx context.Context, symbol string, timeframe int, setupType string) (*models.SetupStat, error)
}

// NotificationStore provides access to notification_records and notification_keys.
type NotificationStore interface {
	// InsertRecord inserts rec. Returns ErrDuplicateKey if (trade, recipient, alert type) exists.
	InsertRecord(ctx context.Context, rec *models.NotificationRecord) error

	// MarkFailed flags an existing record as failed with reason.
	MarkFailed(ctx context.Context, tradeID, recipientID, alertType, reason string) error

	// RecipientsFor returns the recipients holding a record for (tradeID, alertType),
	// leaving out records marked failed.
	RecipientsFor(ctx context.Context, tradeID, alertType string) ([]string, error)

	// ReserveKey inserts key. Returns false if the key already existed.
	ReserveKey(ctx context.Context, key string) (bool, error)

	// PurgeKeysBefore deletes keys created before t and returns how many were removed.
	PurgeKeysBefore(ctx context.Context, t time.Time) (int64, error)
}

// RecipientStore provides access to channel_links and recipient_preferences.
type RecipientStore interface {
	// GetLink returns the link for recipientID. Returns ErrNotFound if none.
	GetLink(ctx context.Context, recipientID string) (*models.ChannelLink, error)

	// GetLinkByCode returns the link holding code. Returns ErrNotFound if none.
	GetLinkByCode(ctx context.Context, code string) (*models.ChannelLink, error)

	// SaveLink inserts or replaces the link keyed by RecipientID.
	// Returns ErrDuplicateKey if its code is held by another recipient.
	SaveLink(ctx context.Context, link *models.ChannelLink) error

	// ListVerifiedLinks returns all verified links with a chat handle.
	ListVerifiedLinks(ctx context.Context) ([]*models.ChannelLink, error)

	// ClearExpiredCodes removes unclaimed codes that expired before t.
	ClearExpiredCodes(ctx context.Context, t time.Time) (int64, error)

	// GetPreference returns the preference row. Returns ErrNotFound if none.
	GetPreference(ctx context.Context, recipientID string) (*models.RecipientPreference, error)

	// SavePreference inserts or replaces the preference row.
	SavePreference(ctx context.Context, pref *models.RecipientPreference) error
}
