package memory

import (
	"context"
	"sync"
	"time"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// NotificationStore is an in-memory implementation of storage.NotificationStore.
type NotificationStore struct {
	mu      sync.Mutex
	records map[recordKey]*models.NotificationRecord
	order   []recordKey
	keys    map[string]time.Time
	nextID  uint
	now     func() time.Time
}

type recordKey struct {
	tradeID     string
	recipientID string
	alertType   string
}

// NewNotificationStore creates a new in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		records: make(map[recordKey]*models.NotificationRecord),
		keys:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// InsertRecord inserts rec unless (trade, recipient, alert type) exists.
func (s *NotificationStore) InsertRecord(_ context.Context, rec *models.NotificationRecord) error {
	if rec == nil || rec.TradeID == "" || rec.RecipientID == "" || rec.AlertType == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{rec.TradeID, rec.RecipientID, rec.AlertType}
	if _, exists := s.records[k]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	c := *rec
	s.records[k] = &c
	s.order = append(s.order, k)
	return nil
}

// MarkFailed flags an existing record as failed.
func (s *NotificationStore) MarkFailed(_ context.Context, tradeID, recipientID, alertType, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey{tradeID, recipientID, alertType}]
	if !ok {
		return storage.ErrNotFound
	}
	rec.Status = models.NotificationStatusFailed
	rec.Error = reason
	return nil
}

// RecipientsFor returns recipients holding a record for (tradeID, alertType)
// that was not marked failed, in insert order.
func (s *NotificationStore) RecipientsFor(_ context.Context, tradeID, alertType string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, k := range s.order {
		if k.tradeID == tradeID && k.alertType == alertType && s.records[k].Status != models.NotificationStatusFailed {
			out = append(out, k.recipientID)
		}
	}
	return out, nil
}

// Record returns a copy of a stored record, mainly for assertions.
func (s *NotificationStore) Record(tradeID, recipientID, alertType string) (*models.NotificationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey{tradeID, recipientID, alertType}]
	if !ok {
		return nil, false
	}
	c := *rec
	return &c, true
}

// ReserveKey inserts key and reports whether it was new.
func (s *NotificationStore) ReserveKey(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = s.now()
	return true, nil
}

// PurgeKeysBefore deletes keys created before t.
func (s *NotificationStore) PurgeKeysBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, created := range s.keys {
		if created.Before(t) {
			delete(s.keys, k)
			n++
		}
	}
	return n, nil
}
