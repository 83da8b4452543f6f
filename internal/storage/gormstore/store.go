// Package gormstore implements the storage interfaces on PostgreSQL via gorm.
package gormstore

import (
	"errors"

	"gorm.io/gorm"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// Store implements storage.TradeStore, storage.SetupStatStore,
// storage.NotificationStore and storage.RecipientStore over one *gorm.DB.
// The DB should be opened with gorm.Config{TranslateError: true} so unique
// violations surface as gorm.ErrDuplicatedKey.
type Store struct {
	db *gorm.DB
}

var (
	_ storage.TradeStore        = (*Store)(nil)
	_ storage.SetupStatStore    = (*Store)(nil)
	_ storage.NotificationStore = (*Store)(nil)
	_ storage.RecipientStore    = (*Store)(nil)
)

// New creates a store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Models lists every table the store reads or writes, in creation order.
func Models() []interface{} {
	return []interface{}{
		&models.Trade{},
		&models.SetupStat{},
		&models.NotificationRecord{},
		&models.NotificationKey{},
		&models.RecipientPreference{},
		&models.ChannelLink{},
	}
}

// AutoMigrate creates or updates the tables for all store models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicateKey
	}
	return err
}
