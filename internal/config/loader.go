// Package config provides centralized configuration management for insightdeck.
// Layers, lowest precedence first: embedded defaults, the user config file, a .env
// file, INSIGHTDECK_* environment variables, then runtime overrides from CLI flags.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/insightdeck/insightdeck/internal/appid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	configFile  string
	dotEnvFiles = []string{".env"}
)

// EnvVarSpec defines environment variable mappings for config fields
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the user config file (the --config flag). Empty restores discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// SetDotEnvFiles replaces the list of .env files read during Load.
func SetDotEnvFiles(paths ...string) {
	configMu.Lock()
	defer configMu.Unlock()
	dotEnvFiles = append([]string(nil), paths...)
}

// Load builds the configuration from every layer, validates it, and makes it
// available through GetConfig. It is safe to call again for a reload.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := map[string]any{}

	defaults := map[string]any{}
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	mergeMaps(merged, defaults)

	userSettings, err := readUserConfig()
	if err != nil {
		return nil, err
	}
	mergeMaps(merged, userSettings)

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	applyLegacyCredentialEnv(envOverrides)
	mergeMaps(merged, envOverrides)

	for _, overrides := range runtimeOverrides {
		mergeMaps(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// readUserConfig reads the pinned config file, or the first existing file from
// the XDG search path. A missing discovered file is not an error.
func readUserConfig() (map[string]any, error) {
	configMu.RLock()
	pinned := configFile
	configMu.RUnlock()

	v := viper.New()
	v.SetConfigType("yaml")

	if pinned != "" {
		v.SetConfigFile(pinned)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", pinned, err)
		}
		return v.AllSettings(), nil
	}

	for _, path := range getUserConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return v.AllSettings(), nil
	}

	return map[string]any{}, nil
}

// loadDotEnv exports .env entries that are not already set in the environment.
func loadDotEnv() error {
	configMu.RLock()
	files := append([]string(nil), dotEnvFiles...)
	configMu.RUnlock()

	if path := strings.TrimSpace(os.Getenv(appid.EnvKey("env_file"))); path != "" {
		files = []string{path}
	}

	existing := make([]string, 0, len(files))
	for _, path := range files {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat env file %s: %w", path, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// getUserConfigPaths returns the list of user config file paths to check
func getUserConfigPaths() []string {
	identity := appid.Get()
	return gfconfig.GetAppConfigPaths(identity.ConfigName)
}

// getEnvSpecs maps INSIGHTDECK_* environment variables to config paths.
func getEnvSpecs() []EnvVarSpec {
	prefix := appid.Get().EnvPrefix

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},
		{Name: prefix + "REDIS_ADDR", Path: []string{"store", "redis", "addr"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"store", "redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"store", "redis", "db"}, Type: EnvInt},
		{Name: prefix + "REDIS_PREFIX", Path: []string{"store", "redis", "prefix"}, Type: EnvString},

		// Upstream credentials are never defaulted
		{Name: prefix + "YOUTUBE_API_KEY", Path: []string{"youtube", "api_key"}, Type: EnvString},
		{Name: prefix + "YOUTUBE_HOST", Path: []string{"youtube", "host"}, Type: EnvString},
		{Name: prefix + "YOUTUBE_BASE_URL", Path: []string{"youtube", "base_url"}, Type: EnvString},
		{Name: prefix + "YOUTUBE_TIMEOUT", Path: []string{"youtube", "timeout"}, Type: EnvString},
		{Name: prefix + "YOUTUBE_MAX_RESULTS", Path: []string{"youtube", "max_results"}, Type: EnvInt},
		{Name: prefix + "PLAYSTORE_API_KEY", Path: []string{"playstore", "api_key"}, Type: EnvString},
		{Name: prefix + "PLAYSTORE_HOST", Path: []string{"playstore", "host"}, Type: EnvString},
		{Name: prefix + "PLAYSTORE_BASE_URL", Path: []string{"playstore", "base_url"}, Type: EnvString},
		{Name: prefix + "PLAYSTORE_TIMEOUT", Path: []string{"playstore", "timeout"}, Type: EnvString},
		{Name: prefix + "MARKET_API_KEY", Path: []string{"market", "api_key"}, Type: EnvString},
		{Name: prefix + "MARKET_BASE_URL", Path: []string{"market", "base_url"}, Type: EnvString},
		{Name: prefix + "MARKET_MODEL", Path: []string{"market", "model"}, Type: EnvString},
		{Name: prefix + "MARKET_TIMEOUT", Path: []string{"market", "timeout"}, Type: EnvString},
		{Name: prefix + "MARKET_TEMPERATURE", Path: []string{"market", "temperature"}, Type: EnvString},

		// Admission quota and retry policy
		{Name: prefix + "RATE_LIMIT_REQUESTS", Path: []string{"rate_limit", "requests"}, Type: EnvInt},
		{Name: prefix + "RATE_LIMIT_WINDOW", Path: []string{"rate_limit", "window"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_SAFEGUARD", Path: []string{"rate_limit", "safeguard"}, Type: EnvBool},
		{Name: prefix + "RETRY_BASE_DELAY", Path: []string{"retry", "base_delay"}, Type: EnvString},
		{Name: prefix + "RETRY_MAX_ATTEMPTS", Path: []string{"retry", "max_attempts"}, Type: EnvInt},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	}
}

// applyLegacyCredentialEnv accepts the dashboard's original credential variable
// names when the prefixed ones are not set. Earlier names in each list win.
func applyLegacyCredentialEnv(envOverrides map[string]any) {
	legacy := []struct {
		names   []string
		section string
	}{
		{names: []string{"RAPIDAPI_KEY", "NEXT_PUBLIC_RAPID_YT_API_KEY", "NEXT_PUBLIC_RAPIDAPI_KEY"}, section: "youtube"},
		{names: []string{"PLAYSTORE_RAPIDAPI_KEY", "NEXT_PUBLIC_PLAYSTORE_RAPIDAPI_KEY"}, section: "playstore"},
		{names: []string{"GROQ_API_KEY", "NEXT_PUBLIC_TGROQ_API_KEY"}, section: "market"},
	}

	for _, entry := range legacy {
		section := ensureMap(envOverrides, entry.section)
		if value, ok := section["api_key"].(string); ok && strings.TrimSpace(value) != "" {
			continue
		}
		for _, name := range entry.names {
			if value := strings.TrimSpace(os.Getenv(name)); value != "" {
				section["api_key"] = value
				break
			}
		}
		if len(section) == 0 {
			delete(envOverrides, entry.section)
		}
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	identity := appid.Get()
	dataDir := gfconfig.GetAppDataDir(identity.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + identity.BinaryName + ".db"
	}
	return filepath.Join(dataDir, identity.BinaryName+".db")
}

// mergeMaps deep-merges src into dst. Nested maps merge; everything else replaces.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := asStringMap(value)
		if !srcIsMap {
			dst[key] = value
			continue
		}
		dstMap, dstIsMap := asStringMap(dst[key])
		if !dstIsMap {
			dstMap = map[string]any{}
		}
		mergeMaps(dstMap, srcMap)
		dst[key] = dstMap
	}
}

func asStringMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for k, v := range typed {
			converted[fmt.Sprint(k)] = v
		}
		return converted, true
	default:
		return nil, false
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if existing, ok := parent[key]; ok {
		if typed, ok := existing.(map[string]any); ok {
			return typed
		}
	}
	next := map[string]any{}
	parent[key] = next
	return next
}
