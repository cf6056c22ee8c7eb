// Package store persists the accepted code list and the scanner settings
// under one logical slot.
package store

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSlot is the logical key codes and settings are kept under.
const DefaultSlot = "couponScanner_coupons"

// Backend names.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Settings is the persisted form of the user-adjustable scanner settings.
type Settings struct {
	Format     string `json:"format"`
	LengthSpec string `json:"length_spec"`
}

// Store loads and saves the accepted codes and settings. Implementations do
// not retry; callers report failures and carry on with in-memory state.
type Store interface {
	LoadCodes(ctx context.Context) ([]string, error)
	SaveCodes(ctx context.Context, codes []string) error
	// LoadSettings reports false when nothing has been saved yet.
	LoadSettings(ctx context.Context) (Settings, bool, error)
	SaveSettings(ctx context.Context, s Settings) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend        string
	Slot           string
	FilePath       string
	RedisURL       string
	RedisKeyPrefix string
	PostgresDSN    string
}

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	slot := cfg.Slot
	if slot == "" {
		slot = DefaultSlot
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		return NewFileStore(cfg.FilePath, slot)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, slot)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN, slot)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
