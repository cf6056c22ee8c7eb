package recognizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrBackendUnavailable is returned when the selected engine is not linked or
// not installed.
var ErrBackendUnavailable = errors.New("recognizer backend unavailable")

// Backend reads text from an encoded PNG image.
type Backend interface {
	Text(ctx context.Context, png []byte) (string, error)
	Close() error
}

// NewBackend creates the engine selected by cfg.Backend.
func NewBackend(cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendTesseract, "":
		return newTesseractCLI(cfg)
	case BackendGosseract:
		return newGosseractBackend(cfg)
	case BackendStatic:
		return &StaticBackend{Output: cfg.StaticText}, nil
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", cfg.Backend)
	}
}

// StaticBackend returns the same text for every image.
type StaticBackend struct {
	Output string
	Err    error
}

func (s *StaticBackend) Text(ctx context.Context, _ []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Output, nil
}

func (s *StaticBackend) Close() error { return nil }
