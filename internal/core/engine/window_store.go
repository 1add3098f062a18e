package engine

import (
	"context"
	"sync"
	"time"

	"github.com/insightdeck/insightdeck/internal/core"
)

// MemoryWindowStore keeps admission windows in process memory.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]core.AdmissionWindow
}

// NewMemoryWindowStore returns an empty in-memory store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]core.AdmissionWindow)}
}

func (m *MemoryWindowStore) LoadWindow(ctx context.Context, key string) (*core.AdmissionWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window, ok := m.windows[key]
	if !ok {
		return nil, nil
	}
	return &window, nil
}

func (m *MemoryWindowStore) SaveWindow(ctx context.Context, key string, window *core.AdmissionWindow) error {
	if window == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windows == nil {
		m.windows = make(map[string]core.AdmissionWindow)
	}
	m.windows[key] = *window
	return nil
}

func (m *MemoryWindowStore) ClearWindow(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, key)
	return nil
}

func (m *MemoryWindowStore) TryAdmit(ctx context.Context, key string, limit int, length time.Duration, now time.Time) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windows == nil {
		m.windows = make(map[string]core.AdmissionWindow)
	}

	window, ok := m.windows[key]
	if !ok || window.Expired(length, now) {
		window = core.AdmissionWindow{}
	}
	if window.RequestCount >= limit {
		return false, window.Remaining(length, now), nil
	}

	if window.RequestCount == 0 {
		window.WindowStart = now
	}
	window.RequestCount++
	m.windows[key] = window
	return true, 0, nil
}

func (m *MemoryWindowStore) ClearExpiredWindow(ctx context.Context, key string, length time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window, ok := m.windows[key]
	if !ok {
		return false, nil
	}
	if !window.Expired(length, now) && !(window.WindowStart.IsZero() && window.RequestCount == 0) {
		return false, nil
	}
	delete(m.windows, key)
	return true, nil
}

// Windows returns a copy of every tracked window keyed by limiter key.
func (m *MemoryWindowStore) Windows() map[string]core.AdmissionWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]core.AdmissionWindow, len(m.windows))
	for key, window := range m.windows {
		out[key] = window
	}
	return out
}
