package store

import (
	"context"

	"github.com/insightdeck/insightdeck/internal/core/engine"
)

// MemoryBackend keeps admission windows in process memory. State is lost on
// exit, so it suits tests and one-off CLI runs.
type MemoryBackend struct {
	*engine.MemoryWindowStore
}

// NewMemoryBackend returns an empty memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{MemoryWindowStore: engine.NewMemoryWindowStore()}
}

func (m *MemoryBackend) ListWindows(ctx context.Context, q WindowQuery) ([]WindowEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	entries := []WindowEntry{}
	for key, window := range m.Windows() {
		if q.Matches(key) {
			entries = append(entries, WindowEntry{Key: key, Window: window})
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (m *MemoryBackend) CountWindows(ctx context.Context, q WindowQuery) (int, error) {
	entries, err := m.ListWindows(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (m *MemoryBackend) ResetWindows(ctx context.Context, q WindowQuery) (int64, error) {
	entries, err := m.ListWindows(ctx, q)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := m.ClearWindow(ctx, entry.Key); err != nil {
			return 0, err
		}
	}
	return int64(len(entries)), nil
}

func (m *MemoryBackend) Driver() string { return driverMemory }

func (m *MemoryBackend) Close() error { return nil }
