package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/core"
)

func TestLibsqlDSN(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested", "insightdeck.db")

	tests := []struct {
		name      string
		cfg       config.StoreConfig
		wantDSN   string
		wantLocal bool
	}{
		{
			name:    "RemoteURLWithToken",
			cfg:     config.StoreConfig{URL: "libsql://example.turso.io", AuthToken: "token123"},
			wantDSN: "libsql://example.turso.io?authToken=token123",
		},
		{
			name:    "RemoteURLKeepsQuery",
			cfg:     config.StoreConfig{URL: "libsql://example.turso.io?foo=bar", AuthToken: "token123"},
			wantDSN: "libsql://example.turso.io?authToken=token123&foo=bar",
		},
		{
			name:    "URLWinsOverPath",
			cfg:     config.StoreConfig{URL: "libsql://example.turso.io", Path: nested},
			wantDSN: "libsql://example.turso.io",
		},
		{
			name:      "FilePrefix",
			cfg:       config.StoreConfig{Path: "file:./insightdeck.db"},
			wantDSN:   "file:./insightdeck.db",
			wantLocal: true,
		},
		{
			name:      "PlainPath",
			cfg:       config.StoreConfig{Path: nested},
			wantDSN:   "file:" + nested,
			wantLocal: true,
		},
		{
			name:    "InMemory",
			cfg:     config.StoreConfig{Path: ":memory:"},
			wantDSN: ":memory:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, local, err := libsqlDSN(tt.cfg)
			require.NoError(t, err)
			require.Equal(t, tt.wantDSN, dsn)
			require.Equal(t, tt.wantLocal, local)
		})
	}

	require.DirExists(t, filepath.Join(dir, "nested"))

	_, _, err := libsqlDSN(config.StoreConfig{})
	require.Error(t, err)
}

func TestWindowQuery(t *testing.T) {
	t.Run("RequiresSelector", func(t *testing.T) {
		require.Error(t, WindowQuery{}.Validate())
		require.Error(t, WindowQuery{Key: "  "}.Validate())
		require.NoError(t, WindowQuery{All: true}.Validate())
	})

	t.Run("Matches", func(t *testing.T) {
		require.True(t, WindowQuery{All: true}.Matches("anything"))
		require.True(t, WindowQuery{Key: "youtube"}.Matches("youtube"))
		require.False(t, WindowQuery{Key: "youtube"}.Matches("youtube-2"))
		require.True(t, WindowQuery{Prefix: "you"}.Matches("youtube"))
		require.False(t, WindowQuery{Prefix: "play"}.Matches("youtube"))
	})

	t.Run("WhereClause", func(t *testing.T) {
		where, args, err := WindowQuery{Prefix: "you"}.whereClause()
		require.NoError(t, err)
		require.Equal(t, "WHERE key LIKE ?", where)
		require.Equal(t, []any{"you%"}, args)

		where, args, err = WindowQuery{All: true}.whereClause()
		require.NoError(t, err)
		require.Empty(t, where)
		require.Nil(t, args)
	})
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()

	backend, err := OpenBackend(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	defer backend.Close() // nolint:errcheck // test cleanup
	require.Equal(t, "memory", backend.Driver())

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, backend.SaveWindow(ctx, "youtube", &core.AdmissionWindow{WindowStart: start, RequestCount: 3}))
	require.NoError(t, backend.SaveWindow(ctx, "playstore", &core.AdmissionWindow{WindowStart: start, RequestCount: 1}))

	entries, err := backend.ListWindows(ctx, WindowQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "playstore", entries[0].Key)
	require.Equal(t, 3, entries[1].Window.RequestCount)

	count, err := backend.CountWindows(ctx, WindowQuery{Prefix: "you"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	deleted, err := backend.ResetWindows(ctx, WindowQuery{Key: "youtube"})
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	window, err := backend.LoadWindow(ctx, "youtube")
	require.NoError(t, err)
	require.Nil(t, window)

	_, err = backend.ListWindows(ctx, WindowQuery{})
	require.Error(t, err)
}

func TestOpenBackendUnsupportedDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), config.StoreConfig{Driver: "postgres"})
	require.Error(t, err)
}
