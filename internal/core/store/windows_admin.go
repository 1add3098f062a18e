package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/core"
)

// WindowEntry is one stored admission window.
type WindowEntry struct {
	Key    string
	Window core.AdmissionWindow
}

// WindowQuery selects admission windows for listing or reset.
type WindowQuery struct {
	All    bool
	Key    string
	Prefix string
}

func (q WindowQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Key) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --key, or --prefix")
}

// Matches reports whether key is selected by the query. Used by the
// memory and redis backends, which filter in process.
func (q WindowQuery) Matches(key string) bool {
	if q.All {
		return true
	}
	if exact := strings.TrimSpace(q.Key); exact != "" {
		return key == exact
	}
	prefix := strings.TrimSpace(q.Prefix)
	return prefix != "" && strings.HasPrefix(key, prefix)
}

func (q WindowQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if key := strings.TrimSpace(q.Key); key != "" {
		return "WHERE key = ?", []any{key}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE key LIKE ?", []any{prefix + "%"}, nil
}

func (s *Store) ListWindows(ctx context.Context, q WindowQuery) ([]WindowEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT key, request_count, window_start_ms
		FROM admission_windows
		%s
		ORDER BY key
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list admission windows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []WindowEntry{}
	for rows.Next() {
		var (
			key           string
			requestCount  int
			windowStartMs int64
		)
		if err := rows.Scan(&key, &requestCount, &windowStartMs); err != nil {
			return nil, fmt.Errorf("scan admission windows: %w", err)
		}

		entries = append(entries, WindowEntry{
			Key: key,
			Window: core.AdmissionWindow{
				WindowStart:  time.UnixMilli(windowStartMs).UTC(),
				RequestCount: requestCount,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admission windows: %w", err)
	}

	return entries, nil
}

func (s *Store) CountWindows(ctx context.Context, q WindowQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM admission_windows
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count admission windows: %w", err)
	}
	return count, nil
}

func (s *Store) ResetWindows(ctx context.Context, q WindowQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM admission_windows
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset admission windows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset admission windows: %w", err)
	}
	return affected, nil
}

func sortEntries(entries []WindowEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}
