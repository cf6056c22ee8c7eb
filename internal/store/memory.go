package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps everything in process memory. Used for tests and for
// throwaway sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	codes    []string
	settings *Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadCodes(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.codes), nil
}

func (m *MemoryStore) SaveCodes(_ context.Context, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = slices.Clone(codes)
	return nil
}

func (m *MemoryStore) LoadSettings(context.Context) (Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return Settings{}, false, nil
	}
	return *m.settings, true, nil
}

func (m *MemoryStore) SaveSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *MemoryStore) Close() error { return nil }
