package memory

import (
	"context"
	"fmt"
	"sync"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// SetupStatStore is an in-memory implementation of storage.SetupStatStore.
type SetupStatStore struct {
	mu   sync.RWMutex
	data map[string]*models.SetupStat
}

// NewSetupStatStore creates a new in-memory setup statistics store.
func NewSetupStatStore() *SetupStatStore {
	return &SetupStatStore{
		data: make(map[string]*models.SetupStat),
	}
}

// Put stores or replaces a statistics row.
func (s *SetupStatStore) Put(stat *models.SetupStat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *stat
	s.data[setupKey(stat.Symbol, stat.Timeframe, stat.SetupType)] = &c
}

// FindSetupStat returns the statistics row for the setup.
func (s *SetupStatStore) FindSetupStat(_ context.Context, symbol string, timeframe int, setupType string) (*models.SetupStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stat, ok := s.data[setupKey(symbol, timeframe, setupType)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *stat
	return &c, nil
}

func setupKey(symbol string, timeframe int, setupType string) string {
	return fmt.Sprintf("%s|%d|%s", symbol, timeframe, setupType)
}
