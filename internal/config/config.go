package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/ledger"
	"github.com/MeKo-Tech/codescan/internal/normalize"
	"github.com/MeKo-Tech/codescan/internal/recognizer"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/store"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	rec := recognizer.DefaultConfig()

	return &Config{
		LogLevel: "info",
		Verbose:  false,

		Scanner: ScannerConfig{
			Format:     normalize.FormatAlphanumeric,
			LengthSpec: "",
		},

		// A 400x300 preview with a scan window 80% wide and 25% high,
		// centered in the box.
		Layout: LayoutConfig{
			Fit:           geometry.Cover.String(),
			BoxX:          0,
			BoxY:          0,
			BoxWidth:      400,
			BoxHeight:     300,
			OverlayX:      40,
			OverlayY:      112.5,
			OverlayWidth:  320,
			OverlayHeight: 75,
		},

		Camera: CameraConfig{
			Width:  1280,
			Height: 720,
		},

		Recognizer: RecognizerConfig{
			Backend:       rec.Backend,
			Languages:     rec.Languages,
			Whitelist:     rec.Whitelist,
			BinaryPath:    rec.BinaryPath,
			PageSegMode:   rec.PageSegMode,
			TimeoutSec:    int(rec.Timeout / time.Second),
			StaticText:    "",
			NormalizeForm: rec.Clean.NormalizeForm,
			Preprocess: PreprocessConfig{
				Enabled:   rec.Preprocess.Enabled,
				MinHeight: rec.Preprocess.MinHeight,
				Contrast:  rec.Preprocess.Contrast,
				Sharpen:   rec.Preprocess.Sharpen,
			},
		},

		Store: StoreConfig{
			Backend: store.BackendFile,
			Slot:    store.DefaultSlot,
			File:    FileStoreConfig{Path: ""},
			Redis: RedisStoreConfig{
				URL:       "",
				KeyPrefix: store.DefaultRedisKeyPrefix,
			},
			Postgres: PostgresStoreConfig{DSN: ""},
		},

		Export: ExportConfig{
			Header:    ledger.DefaultExportHeader,
			EmptyText: ledger.DefaultExportEmptyText,
			Dir:       ".",
		},

		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			WatchConfig:     false,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := c.ToScannerSettings(); err != nil {
		return fmt.Errorf("invalid scanner config: %w", err)
	}

	if _, err := c.ToLayout(); err != nil {
		return fmt.Errorf("invalid layout config: %w", err)
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera size: %dx%d (must be positive)", c.Camera.Width, c.Camera.Height)
	}

	if c.Recognizer.TimeoutSec < 0 {
		return fmt.Errorf("invalid recognizer timeout: %d (must be >= 0)", c.Recognizer.TimeoutSec)
	}
	validForms := []string{"", "none", "NFC", "NFD", "NFKC", "NFKD"}
	if !contains(validForms, c.Recognizer.NormalizeForm) {
		return fmt.Errorf("invalid normalize form: %s (must be one of: NFC, NFD, NFKC, NFKD, none)",
			c.Recognizer.NormalizeForm)
	}
	if err := c.ToRecognizerConfig().Validate(); err != nil {
		return fmt.Errorf("invalid recognizer config: %w", err)
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be > 0)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout: %d (must be > 0)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be >= 0)", c.Server.ShutdownTimeout)
	}

	return nil
}

func (c *Config) validateStore() error {
	validBackends := []string{store.BackendFile, store.BackendMemory, store.BackendRedis, store.BackendPostgres}
	if !contains(validBackends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (must be one of: %s)",
			c.Store.Backend, strings.Join(validBackends, ", "))
	}
	if strings.TrimSpace(c.Store.Slot) == "" {
		return errors.New("store slot must not be empty")
	}
	if c.Store.Backend == store.BackendRedis && c.Store.Redis.URL == "" {
		return errors.New("store.redis.url is required for the redis backend")
	}
	if c.Store.Backend == store.BackendPostgres && c.Store.Postgres.DSN == "" {
		return errors.New("store.postgres.dsn is required for the postgres backend")
	}
	return nil
}

// ToRecognizerConfig converts the recognizer section to recognizer.Config.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	rc := recognizer.DefaultConfig()
	rc.Backend = c.Recognizer.Backend
	rc.Languages = c.Recognizer.Languages
	rc.Whitelist = c.Recognizer.Whitelist
	rc.BinaryPath = c.Recognizer.BinaryPath
	rc.PageSegMode = c.Recognizer.PageSegMode
	rc.Timeout = time.Duration(c.Recognizer.TimeoutSec) * time.Second
	rc.StaticText = c.Recognizer.StaticText
	if c.Recognizer.NormalizeForm != "" {
		rc.Clean.NormalizeForm = c.Recognizer.NormalizeForm
	}
	rc.Preprocess = recognizer.PreprocessOptions{
		Enabled:   c.Recognizer.Preprocess.Enabled,
		MinHeight: c.Recognizer.Preprocess.MinHeight,
		Contrast:  c.Recognizer.Preprocess.Contrast,
		Sharpen:   c.Recognizer.Preprocess.Sharpen,
	}
	return rc
}

// ToStoreConfig converts the store section to store.Config.
func (c *Config) ToStoreConfig() store.Config {
	return store.Config{
		Backend:        c.Store.Backend,
		Slot:           c.Store.Slot,
		FilePath:       c.Store.File.Path,
		RedisURL:       c.Store.Redis.URL,
		RedisKeyPrefix: c.Store.Redis.KeyPrefix,
		PostgresDSN:    c.Store.Postgres.DSN,
	}
}

// ToScannerSettings returns the default normalization settings.
func (c *Config) ToScannerSettings() (scanner.Settings, error) {
	format, err := normalize.ParseFormatPolicy(c.Scanner.Format)
	if err != nil {
		return scanner.Settings{}, err
	}
	return scanner.Settings{Format: format, LengthSpec: strings.TrimSpace(c.Scanner.LengthSpec)}, nil
}

// ToLayout returns the configured display box and scan window.
func (c *Config) ToLayout() (geometry.Layout, error) {
	fit, err := geometry.ParseFitPolicy(c.Layout.Fit)
	if err != nil {
		return geometry.Layout{}, err
	}
	l := geometry.Layout{
		Box: geometry.DisplayRect{
			X: c.Layout.BoxX, Y: c.Layout.BoxY,
			Width: c.Layout.BoxWidth, Height: c.Layout.BoxHeight,
		},
		Overlay: geometry.DisplayRect{
			X: c.Layout.OverlayX, Y: c.Layout.OverlayY,
			Width: c.Layout.OverlayWidth, Height: c.Layout.OverlayHeight,
		},
		Fit: fit,
	}
	if !l.Box.Size().Valid() {
		return geometry.Layout{}, fmt.Errorf("%w: box %s", geometry.ErrInvalidGeometry, l.Box)
	}
	if l.Overlay.Width <= 0 || l.Overlay.Height <= 0 {
		return geometry.Layout{}, fmt.Errorf("%w: overlay %s", geometry.ErrEmptyRegion, l.Overlay)
	}
	return l, nil
}

// ExportOptions returns the texts used for the shareable code list.
func (c *Config) ExportOptions() ledger.ExportOptions {
	return ledger.ExportOptions{Header: c.Export.Header, EmptyText: c.Export.EmptyText}
}

// CameraDimensions returns the configured capture size.
func (c *Config) CameraDimensions() geometry.Dimensions {
	return geometry.Dimensions{Width: float64(c.Camera.Width), Height: float64(c.Camera.Height)}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
