package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm/clause"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

const newestFirst = "started_at DESC, id DESC"

func (s *Store) Get(ctx context.Context, tradeID string) (*models.Trade, error) {
	var t models.Trade
	err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order(newestFirst).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *Store) GetOpen(ctx context.Context, tradeID string) (*models.Trade, error) {
	var t models.Trade
	err := s.db.WithContext(ctx).
		Where("trade_id = ? AND closed_at IS NULL", tradeID).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// PutIfAbsent relies on the partial unique index idx_trades_open_trade_id.
func (s *Store) PutIfAbsent(ctx context.Context, t *models.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Store) UpdateWhereOpen(ctx context.Context, tradeID string, patch models.TradePatch) (bool, error) {
	cols := patch.Columns()
	if len(cols) == 0 {
		_, err := s.GetOpen(ctx, tradeID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}

	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("trade_id = ? AND closed_at IS NULL", tradeID).
		Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("update trade %s: %w", tradeID, translate(res.Error))
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) LatestOpen(ctx context.Context, symbol string, timeframe int, direction models.Direction) (*models.Trade, error) {
	var t models.Trade
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND direction = ? AND closed_at IS NULL", symbol, timeframe, direction).
		Order(newestFirst).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *Store) List(ctx context.Context, q storage.TradeQuery) ([]*models.Trade, error) {
	tx := s.db.WithContext(ctx).Model(&models.Trade{})

	switch q.Status {
	case storage.TradeStatusOpen:
		tx = tx.Where("closed_at IS NULL")
	case storage.TradeStatusClosed:
		tx = tx.Where("closed_at IS NOT NULL")
		if !q.ClosedSince.IsZero() {
			tx = tx.Where("closed_at >= ?", q.ClosedSince)
		}
	default:
		if !q.ClosedSince.IsZero() {
			tx = tx.Where("closed_at IS NULL OR closed_at >= ?", q.ClosedSince)
		}
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []*models.Trade
	if err := tx.Order(newestFirst).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return out, nil
}

func (s *Store) FindSetupStat(ctx context.Context, symbol string, timeframe int, setupType string) (*models.SetupStat, error) {
	var stat models.SetupStat
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND setup_type = ?", symbol, timeframe, setupType).
		First(&stat).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stat, nil
}

// PutSetupStat inserts or replaces the statistics row for a setup.
func (s *Store) PutSetupStat(ctx context.Context, stat *models.SetupStat) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "setup_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"win_rate", "profit_factor", "sample_size", "verified", "updated_at"}),
	}).Create(stat).Error
}
