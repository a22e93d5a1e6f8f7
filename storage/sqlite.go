package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"
)

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" gives an in-memory database.
	Path string `json:"path" yaml:"path"`
}

// stateItem is the gorm model backing one stored item.
type stateItem struct {
	Key  string `gorm:"primaryKey;column:key"`
	Data []byte `gorm:"column:data"`
}

func (stateItem) TableName() string { return "bot_state" }

// SQLiteStorage is a SQLite-backed implementation of Storage using gorm.
// Suitable for single-node deployments that need durability without a
// separate server.
type SQLiteStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStorage opens (and migrates) the database at cfg.Path.
func NewSQLiteStorage(cfg SQLiteConfig, logger *zap.Logger) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, ErrInvalidInput
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&stateItem{}); err != nil {
		return nil, fmt.Errorf("migrate bot_state table: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{db: db, logger: logger.With(zap.String("component", "sqlite_storage"))}, nil
}

// Read loads the requested items.
func (s *SQLiteStorage) Read(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	if len(keys) == 0 {
		return map[string]map[string]any{}, nil
	}

	var rows []stateItem
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite read: %w", err)
	}

	result := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		var item map[string]any
		if err := json.Unmarshal(row.Data, &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", row.Key, err)
		}
		result[row.Key] = item
	}
	return result, nil
}

// Write upserts the given items.
func (s *SQLiteStorage) Write(ctx context.Context, changes map[string]map[string]any) error {
	if len(changes) == 0 {
		return nil
	}

	rows := make([]stateItem, 0, len(changes))
	for key, item := range changes {
		if key == "" {
			return ErrInvalidInput
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", key, err)
		}
		rows = append(rows, stateItem{Key: key, Data: data})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("sqlite write: %w", err)
	}
	return nil
}

// Delete removes the given items.
func (s *SQLiteStorage) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&stateItem{}).Error; err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		if errors.Is(err, gorm.ErrInvalidDB) {
			return nil
		}
		return err
	}
	return sqlDB.Close()
}
