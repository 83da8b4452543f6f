package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

func (s *Store) InsertRecord(ctx context.Context, rec *models.NotificationRecord) error {
	if rec == nil || rec.TradeID == "" || rec.RecipientID == "" || rec.AlertType == "" {
		return storage.ErrInvalidInput
	}
	return translate(s.db.WithContext(ctx).Create(rec).Error)
}

func (s *Store) MarkFailed(ctx context.Context, tradeID, recipientID, alertType, reason string) error {
	res := s.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("trade_id = ? AND recipient_id = ? AND alert_type = ?", tradeID, recipientID, alertType).
		Updates(map[string]interface{}{
			"status": models.NotificationStatusFailed,
			"error":  reason,
		})
	if res.Error != nil {
		return fmt.Errorf("mark notification failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) RecipientsFor(ctx context.Context, tradeID, alertType string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("trade_id = ? AND alert_type = ?", tradeID, alertType).
		Where("status IS NULL OR status <> ?", models.NotificationStatusFailed).
		Order("id ASC").
		Pluck("recipient_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list recipients for %s: %w", tradeID, err)
	}
	return ids, nil
}

func (s *Store) ReserveKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.NotificationKey{Key: key})
	if res.Error != nil {
		return false, fmt.Errorf("reserve key: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) PurgeKeysBefore(ctx context.Context, t time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", t).Delete(&models.NotificationKey{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge notification keys: %w", res.Error)
	}
	return res.RowsAffected, nil
}
