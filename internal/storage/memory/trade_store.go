package memory

import (
	"context"
	"sort"
	"sync"

	"gorm.io/datatypes"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
// It is single-instance only; rows live as long as the process.
type TradeStore struct {
	mu     sync.RWMutex
	rows   []*models.Trade
	nextID uint
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

// Get returns the most recent row for tradeID.
func (s *TradeStore) Get(_ context.Context, tradeID string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].TradeID == tradeID {
			return cloneTrade(s.rows[i]), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetOpen returns the open row for tradeID.
func (s *TradeStore) GetOpen(_ context.Context, tradeID string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if row := s.openRow(tradeID); row != nil {
		return cloneTrade(row), nil
	}
	return nil, storage.ErrNotFound
}

// PutIfAbsent inserts t unless an open row with the same TradeID exists.
func (s *TradeStore) PutIfAbsent(_ context.Context, t *models.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openRow(t.TradeID) != nil {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	t.ID = s.nextID
	s.rows = append(s.rows, cloneTrade(t))
	return nil
}

// UpdateWhereOpen applies patch to the open row for tradeID.
func (s *TradeStore) UpdateWhereOpen(_ context.Context, tradeID string, patch models.TradePatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.openRow(tradeID)
	if row == nil {
		return false, nil
	}
	patch.Apply(row)
	return true, nil
}

// LatestOpen returns the most recently started open trade for the instrument.
func (s *TradeStore) LatestOpen(_ context.Context, symbol string, timeframe int, direction models.Direction) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Trade
	for _, row := range s.rows {
		if row.IsClosed() || row.Symbol != symbol || row.Timeframe != timeframe || row.Direction != direction {
			continue
		}
		if latest == nil || !row.StartedAt.Before(latest.StartedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return cloneTrade(latest), nil
}

// List returns trades newest first.
func (s *TradeStore) List(_ context.Context, q storage.TradeQuery) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Trade
	for _, row := range s.rows {
		if !matchesQuery(row, q) {
			continue
		}
		out = append(out, cloneTrade(row))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *TradeStore) openRow(tradeID string) *models.Trade {
	for _, row := range s.rows {
		if row.TradeID == tradeID && !row.IsClosed() {
			return row
		}
	}
	return nil
}

func matchesQuery(row *models.Trade, q storage.TradeQuery) bool {
	switch q.Status {
	case storage.TradeStatusOpen:
		return !row.IsClosed()
	case storage.TradeStatusClosed:
		if !row.IsClosed() {
			return false
		}
	default:
		if !row.IsClosed() {
			return true
		}
	}
	return q.ClosedSince.IsZero() || !row.ClosedAt.Before(q.ClosedSince)
}

func cloneTrade(t *models.Trade) *models.Trade {
	c := *t
	if t.TP1Percent != nil {
		v := *t.TP1Percent
		c.TP1Percent = &v
	}
	if t.TP2Percent != nil {
		v := *t.TP2Percent
		c.TP2Percent = &v
	}
	if t.PnLPercent != nil {
		v := *t.PnLPercent
		c.PnLPercent = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		c.ClosedAt = &v
	}
	if t.Payload != nil {
		c.Payload = append(datatypes.JSON(nil), t.Payload...)
	}
	return &c
}
