//go:build tesseract

package recognizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// gosseractBackend keeps one libtesseract engine alive for the process.
// The engine is not reentrant, so calls are serialized.
type gosseractBackend struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func newGosseractBackend(cfg Config) (Backend, error) {
	client := gosseract.NewClient()
	if langs := cfg.languageList(); len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gosseract: set language: %w", err)
		}
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gosseract: set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gosseract: set page segmentation mode: %w", err)
	}
	return &gosseractBackend{client: client}, nil
}

func (g *gosseractBackend) Text(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("gosseract: set image: %w", err)
	}
	text, err := g.client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract: %w", err)
	}
	return text, nil
}

func (g *gosseractBackend) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client.Close()
}
