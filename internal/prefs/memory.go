package prefs

import (
	"context"
	"slices"
	"sync"
)

type memoryBackend struct {
	mu   sync.RWMutex
	vals map[string][]byte
}

// NewMemory keeps preferences for the lifetime of the process.
func NewMemory() Store {
	return newStore(&memoryBackend{vals: map[string][]byte{}})
}

func (m *memoryBackend) get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return slices.Clone(v), ok, nil
}

func (m *memoryBackend) set(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = slices.Clone(val)
	return nil
}

func (m *memoryBackend) close() error { return nil }
