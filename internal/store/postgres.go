package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type codeListRecord struct {
	Slot      string         `gorm:"primaryKey;size:128"`
	Codes     pq.StringArray `gorm:"type:text[]"`
	UpdatedAt time.Time
}

func (codeListRecord) TableName() string { return "codescan_codes" }

type settingsRecord struct {
	Slot       string `gorm:"primaryKey;size:128"`
	Format     string `gorm:"size:32"`
	LengthSpec string `gorm:"type:text"`
	UpdatedAt  time.Time
}

func (settingsRecord) TableName() string { return "codescan_settings" }

// PostgresStore keeps one row per slot in each of two tables.
type PostgresStore struct {
	db   *gorm.DB
	slot string
}

// NewPostgresStore opens dsn and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn, slot string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&codeListRecord{}, &settingsRecord{}); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	if slot == "" {
		slot = DefaultSlot
	}
	return &PostgresStore{db: db, slot: slot}, nil
}

func (p *PostgresStore) LoadCodes(ctx context.Context) ([]string, error) {
	var rec codeListRecord
	err := p.db.WithContext(ctx).First(&rec, "slot = ?", p.slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load codes: %w", err)
	}
	return []string(rec.Codes), nil
}

func (p *PostgresStore) SaveCodes(ctx context.Context, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	rec := codeListRecord{Slot: p.slot, Codes: pq.StringArray(codes)}
	if err := p.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("postgres store: save codes: %w", err)
	}
	return nil
}

func (p *PostgresStore) LoadSettings(ctx context.Context) (Settings, bool, error) {
	var rec settingsRecord
	err := p.db.WithContext(ctx).First(&rec, "slot = ?", p.slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("postgres store: load settings: %w", err)
	}
	return Settings{Format: rec.Format, LengthSpec: rec.LengthSpec}, true, nil
}

func (p *PostgresStore) SaveSettings(ctx context.Context, s Settings) error {
	rec := settingsRecord{Slot: p.slot, Format: s.Format, LengthSpec: s.LengthSpec}
	if err := p.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("postgres store: save settings: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
