package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every discovery path at temp dirs so the developer's own
// config and .env never leak into a test.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("INSIGHTDECK_ENV_FILE", "")
	t.Setenv("INSIGHTDECK_YOUTUBE_API_KEY", "")
	t.Setenv("INSIGHTDECK_PLAYSTORE_API_KEY", "")
	t.Setenv("INSIGHTDECK_MARKET_API_KEY", "")
	for _, name := range []string{
		"RAPIDAPI_KEY", "NEXT_PUBLIC_RAPID_YT_API_KEY", "NEXT_PUBLIC_RAPIDAPI_KEY",
		"PLAYSTORE_RAPIDAPI_KEY", "NEXT_PUBLIC_PLAYSTORE_RAPIDAPI_KEY",
		"GROQ_API_KEY", "NEXT_PUBLIC_TGROQ_API_KEY",
	} {
		t.Setenv(name, "")
	}

	SetConfigFile("")
	SetDotEnvFiles(filepath.Join(dir, ".env"))
	t.Cleanup(func() {
		SetConfigFile("")
		SetDotEnvFiles(".env")
	})
	return dir
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, DefaultStorePath(), cfg.Store.Path)

		assert.Empty(t, cfg.YouTube.APIKey)
		assert.Equal(t, "youtube-api-full.p.rapidapi.com", cfg.YouTube.Host)
		assert.Equal(t, 10*time.Second, cfg.YouTube.Timeout)
		assert.Equal(t, 20, cfg.YouTube.MaxResults)

		assert.Equal(t, 5, cfg.RateLimit.Requests)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.True(t, cfg.RateLimit.Safeguard)

		assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)

		assert.Empty(t, cfg.Market.APIKey)
		assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Market.BaseURL)
		assert.InDelta(t, 0.7, cfg.Market.Temperature, 0.0001)
		assert.Equal(t, 30*time.Second, cfg.Market.Timeout)

		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("INSIGHTDECK_PORT", "3000")
		t.Setenv("INSIGHTDECK_LOG_LEVEL", "warn")
		t.Setenv("INSIGHTDECK_YOUTUBE_API_KEY", "yt-secret")
		t.Setenv("INSIGHTDECK_RATE_LIMIT_WINDOW", "90s")
		t.Setenv("INSIGHTDECK_RETRY_MAX_ATTEMPTS", "5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "yt-secret", cfg.YouTube.APIKey)
		assert.Equal(t, 90*time.Second, cfg.RateLimit.Window)
		assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	})

	t.Run("RuntimeOverridesWin", func(t *testing.T) {
		isolate(t)
		t.Setenv("INSIGHTDECK_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
			"store":  map[string]any{"driver": "memory"},
		})
		require.NoError(t, err)

		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Equal(t, "memory", cfg.Store.Driver)
		assert.Equal(t, "localhost", cfg.Server.Host)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  requests: 10\nretry:\n  base_delay: 500ms\n"), 0o600))
		SetConfigFile(path)

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 10, cfg.RateLimit.Requests)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	})

	t.Run("MissingPinnedConfigFile", func(t *testing.T) {
		dir := isolate(t)
		SetConfigFile(filepath.Join(dir, "absent.yaml"))

		_, err := Load(ctx)
		require.Error(t, err)
	})

	t.Run("DotEnvFile", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.Unsetenv("INSIGHTDECK_PLAYSTORE_API_KEY"))
		t.Cleanup(func() { _ = os.Unsetenv("INSIGHTDECK_PLAYSTORE_API_KEY") })

		envPath := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(envPath, []byte("INSIGHTDECK_PLAYSTORE_API_KEY=ps-from-dotenv\n"), 0o600))
		SetDotEnvFiles(envPath)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ps-from-dotenv", cfg.PlayStore.APIKey)
	})

	t.Run("LegacyCredentialName", func(t *testing.T) {
		cases := []struct {
			name  string
			env   string
			value func(*Config) string
		}{
			{name: "youtube", env: "RAPIDAPI_KEY", value: func(c *Config) string { return c.YouTube.APIKey }},
			{name: "youtube dashboard", env: "NEXT_PUBLIC_RAPID_YT_API_KEY", value: func(c *Config) string { return c.YouTube.APIKey }},
			{name: "playstore dashboard", env: "NEXT_PUBLIC_PLAYSTORE_RAPIDAPI_KEY", value: func(c *Config) string { return c.PlayStore.APIKey }},
			{name: "market dashboard", env: "NEXT_PUBLIC_TGROQ_API_KEY", value: func(c *Config) string { return c.Market.APIKey }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				isolate(t)
				t.Setenv(tc.env, "legacy-key")

				cfg, err := Load(ctx)
				require.NoError(t, err)
				assert.Equal(t, "legacy-key", tc.value(cfg))
			})
		}
	})

	t.Run("PrefixedCredentialWinsOverLegacy", func(t *testing.T) {
		isolate(t)
		t.Setenv("NEXT_PUBLIC_TGROQ_API_KEY", "legacy-key")
		t.Setenv("INSIGHTDECK_MARKET_API_KEY", "prefixed-key")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "prefixed-key", cfg.Market.APIKey)
	})

	t.Run("InvalidQuotaRejected", func(t *testing.T) {
		isolate(t)

		_, err := Load(ctx, map[string]any{
			"rate_limit": map[string]any{"requests": 0},
			"store":      map[string]any{"driver": "postgres"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit.requests")
		assert.Contains(t, err.Error(), "store.driver")
	})

	t.Run("GetConfigReturnsLoadedConfig", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Same(t, cfg, GetConfig())
	})
}

func TestMergeMaps(t *testing.T) {
	dst := map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
		"name":   "base",
	}
	mergeMaps(dst, map[string]any{
		"server": map[string]any{"port": 9000},
		"name":   "override",
		"extra":  true,
	})

	assert.Equal(t, map[string]any{
		"server": map[string]any{"host": "localhost", "port": 9000},
		"name":   "override",
		"extra":  true,
	}, dst)
}
