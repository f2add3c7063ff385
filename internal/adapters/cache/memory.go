package cache

import (
	"context"
	"maps"
	"sync"

	"github.com/okian/speedglobe/internal/domain/model"
)

// Memory is a process-local Store. Concurrent writers for one key are
// last-write-wins.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]model.Coordinate
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]model.Coordinate)}
}

func (m *Memory) Get(_ context.Context, key string) (model.Coordinate, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.entries[key]
	return c, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, c model.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = c
	return nil
}

func (m *Memory) Snapshot(context.Context) (map[string]model.Coordinate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries), nil
}

// Len returns the number of cached names.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Close() error { return nil }
