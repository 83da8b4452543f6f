package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

func (s *Store) GetLink(ctx context.Context, recipientID string) (*models.ChannelLink, error) {
	var link models.ChannelLink
	if err := s.db.WithContext(ctx).Where("recipient_id = ?", recipientID).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (s *Store) GetLinkByCode(ctx context.Context, code string) (*models.ChannelLink, error) {
	if code == "" {
		return nil, storage.ErrNotFound
	}
	var link models.ChannelLink
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// SaveLink upserts on recipient_id. A code already held by another recipient
// violates idx_channel_links_code and returns storage.ErrDuplicateKey.
func (s *Store) SaveLink(ctx context.Context, link *models.ChannelLink) error {
	if link == nil || link.RecipientID == "" {
		return storage.ErrInvalidInput
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "recipient_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"chat_handle":     link.ChatHandle,
			"verified":        link.Verified,
			"code":            link.Code,
			"code_expires_at": link.CodeExpiresAt,
			"linked_at":       link.LinkedAt,
			"updated_at":      time.Now(),
		}),
	}).Create(link).Error
	return translate(err)
}

func (s *Store) ListVerifiedLinks(ctx context.Context) ([]*models.ChannelLink, error) {
	var links []*models.ChannelLink
	err := s.db.WithContext(ctx).
		Where("verified = ? AND chat_handle <> ''", true).
		Order("recipient_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list verified links: %w", err)
	}
	return links, nil
}

func (s *Store) ClearExpiredCodes(ctx context.Context, t time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.ChannelLink{}).
		Where("code <> '' AND code_expires_at < ?", t).
		Updates(map[string]interface{}{"code": "", "code_expires_at": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("clear expired link codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) GetPreference(ctx context.Context, recipientID string) (*models.RecipientPreference, error) {
	var pref models.RecipientPreference
	if err := s.db.WithContext(ctx).Where("recipient_id = ?", recipientID).First(&pref).Error; err != nil {
		return nil, translate(err)
	}
	return &pref, nil
}

func (s *Store) SavePreference(ctx context.Context, pref *models.RecipientPreference) error {
	if pref == nil || pref.RecipientID == "" {
		return storage.ErrInvalidInput
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_enabled", "symbols", "timeframes", "tiers", "updated_at"}),
	}).Create(pref).Error
	return translate(err)
}
