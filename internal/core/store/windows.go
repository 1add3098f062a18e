package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/core"
)

// LoadWindow returns the stored admission window for a limiter key, or nil.
func (s *Store) LoadWindow(ctx context.Context, key string) (*core.AdmissionWindow, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("window key is required")
	}

	var (
		requestCount  int
		windowStartMs int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT request_count, window_start_ms
		FROM admission_windows
		WHERE key = ?
	`, key)

	if err := row.Scan(&requestCount, &windowStartMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch admission window: %w", err)
	}

	return &core.AdmissionWindow{
		WindowStart:  time.UnixMilli(windowStartMs).UTC(),
		RequestCount: requestCount,
	}, nil
}

// SaveWindow persists the admission window for a limiter key.
func (s *Store) SaveWindow(ctx context.Context, key string, window *core.AdmissionWindow) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("window key is required")
	}
	if window == nil {
		return errors.New("admission window is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO admission_windows (key, request_count, window_start_ms, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			request_count = excluded.request_count,
			window_start_ms = excluded.window_start_ms,
			updated_at_ms = excluded.updated_at_ms
	`, key, window.RequestCount, window.WindowStart.UTC().UnixMilli(), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store admission window: %w", err)
	}

	return nil
}

// TryAdmit counts one request in a single upsert. The conflict branch only fires
// when the stored window has expired or still has room, and RETURNING yields no
// row when it does not, so concurrent connections cannot both take the last slot.
func (s *Store) TryAdmit(ctx context.Context, key string, limit int, length time.Duration, now time.Time) (bool, time.Duration, error) {
	if s == nil || s.DB == nil {
		return false, 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return false, 0, errors.New("window key is required")
	}

	nowMs := now.UTC().UnixMilli()
	lengthMs := length.Milliseconds()

	var count int
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO admission_windows (key, request_count, window_start_ms, updated_at_ms)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			request_count = CASE
				WHEN excluded.window_start_ms - admission_windows.window_start_ms >= ? THEN 1
				ELSE admission_windows.request_count + 1
			END,
			window_start_ms = CASE
				WHEN excluded.window_start_ms - admission_windows.window_start_ms >= ? THEN excluded.window_start_ms
				ELSE admission_windows.window_start_ms
			END,
			updated_at_ms = excluded.updated_at_ms
		WHERE excluded.window_start_ms - admission_windows.window_start_ms >= ?
			OR admission_windows.request_count < ?
		RETURNING request_count
	`, key, nowMs, nowMs, lengthMs, lengthMs, lengthMs, limit).Scan(&count)
	if err == nil {
		return true, 0, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, fmt.Errorf("admit request: %w", err)
	}

	window, err := s.LoadWindow(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if window == nil {
		return false, 0, nil
	}
	return false, window.Remaining(length, now), nil
}

// ClearExpiredWindow deletes the window for key when it started at least length ago.
func (s *Store) ClearExpiredWindow(ctx context.Context, key string, length time.Duration, now time.Time) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM admission_windows
		WHERE key = ? AND window_start_ms <= ?
	`, strings.TrimSpace(key), now.UTC().Add(-length).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("clear expired admission window: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear expired admission window: %w", err)
	}
	return deleted > 0, nil
}

// ClearWindow removes the admission window for a limiter key.
func (s *Store) ClearWindow(ctx context.Context, key string) error {
	_, err := s.ResetWindows(ctx, WindowQuery{Key: key})
	return err
}
