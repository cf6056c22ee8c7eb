package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// DefaultFileName is used when no file path is configured.
const DefaultFileName = "codescan_store.json"

type fileSlot struct {
	Codes    []string  `json:"codes"`
	Settings *Settings `json:"settings,omitempty"`
}

// FileStore keeps slots in a single JSON document on disk. Writes go through a
// temp file and rename so a crash never leaves a truncated document.
type FileStore struct {
	path string
	slot string
	mu   sync.RWMutex
}

// NewFileStore returns a store backed by path. An empty path resolves to
// DefaultFileName in the user's home directory.
func NewFileStore(path, slot string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("file store: resolve home directory: %w", err)
		}
		path = filepath.Join(home, DefaultFileName)
	}
	if slot == "" {
		slot = DefaultSlot
	}
	return &FileStore{path: path, slot: slot}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) LoadCodes(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return slices.Clone(doc[s.slot].Codes), nil
}

func (s *FileStore) SaveCodes(_ context.Context, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	entry := doc[s.slot]
	entry.Codes = slices.Clone(codes)
	if entry.Codes == nil {
		entry.Codes = []string{}
	}
	doc[s.slot] = entry
	return s.write(doc)
}

func (s *FileStore) LoadSettings(context.Context) (Settings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		return Settings{}, false, err
	}
	entry := doc[s.slot]
	if entry.Settings == nil {
		return Settings{}, false, nil
	}
	return *entry.Settings, true, nil
}

func (s *FileStore) SaveSettings(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	entry := doc[s.slot]
	entry.Settings = &settings
	if entry.Codes == nil {
		entry.Codes = []string{}
	}
	doc[s.slot] = entry
	return s.write(doc)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (map[string]fileSlot, error) {
	doc := make(map[string]fileSlot)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("file store: decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc map[string]fileSlot) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file store: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".codescan-*.json")
	if err != nil {
		return fmt.Errorf("file store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("file store: replace %s: %w", s.path, err)
	}
	return nil
}
