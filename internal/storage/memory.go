package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend keeps snapshots in process memory. History is lost on exit.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[uint64][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[uint64][]byte)}
}

func (m *MemoryBackend) Load(_ context.Context, version uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[version]
	if !ok {
		return nil, notFound(version)
	}
	return slices.Clone(d), nil
}

func (m *MemoryBackend) Save(_ context.Context, version uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[version] = slices.Clone(data)
	return nil
}

func (m *MemoryBackend) ListVersions(context.Context) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, 0, len(m.data))
	for v := range m.data {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

func (m *MemoryBackend) Delete(_ context.Context, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[version]; !ok {
		return notFound(version)
	}
	delete(m.data, version)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
