package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/codescan/internal/utils"
)

// Recognizer prepares a region image, runs the backend and cleans the output.
type Recognizer struct {
	config  Config
	backend Backend
	logger  *slog.Logger
}

// New creates a recognizer with the backend selected by cfg.
func New(cfg Config) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(cfg, backend), nil
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(cfg Config, backend Backend) *Recognizer {
	return &Recognizer{config: cfg, backend: backend, logger: slog.Default()}
}

// WithLogger returns r logging to logger.
func (r *Recognizer) WithLogger(logger *slog.Logger) *Recognizer {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Config returns the recognizer configuration.
func (r *Recognizer) Config() Config { return r.config }

// Recognize returns the cleaned text found in img. The backend's untouched
// output is only logged, at debug level.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("recognizer: nil image")
	}
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	prepared := Preprocess(img, r.config.Preprocess)
	data, err := utils.EncodePNG(prepared)
	if err != nil {
		return "", fmt.Errorf("recognizer: %w", err)
	}

	raw, err := r.backend.Text(ctx, data)
	if err != nil {
		return "", err
	}
	text := CleanText(raw, r.config.Clean)

	r.logger.Debug("recognized region",
		"backend", r.config.Backend,
		"width", prepared.Bounds().Dx(),
		"height", prepared.Bounds().Dy(),
		"raw", raw,
		"text", text,
		"duration", time.Since(start))
	return text, nil
}

// Close releases the backend.
func (r *Recognizer) Close() error {
	if r.backend == nil {
		return nil
	}
	return r.backend.Close()
}
