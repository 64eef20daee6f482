package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SessionEvent struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"size:8;index"`
	Kind      string    `gorm:"size:32;index"`
	Detail    string    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index"`
}

// Journal writes events to postgres through gorm.
type Journal struct {
	db *gorm.DB
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

func OpenJournal(dsn string) (*Journal, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.Migrate(); err != nil {
		return nil, multierr.Append(err, j.Close())
	}
	return j, nil
}

// NewJournal wraps an existing gorm handle.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) Migrate() error {
	if err := j.db.AutoMigrate(&SessionEvent{}); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

func (j *Journal) Insert(ctx context.Context, e Event) error {
	row := SessionEvent{
		RoomCode:  e.RoomCode,
		Kind:      string(e.Kind),
		Detail:    encodeDetail(e.Detail),
		CreatedAt: e.At,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert %s for %s: %w", e.Kind, e.RoomCode, err)
	}
	return nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
