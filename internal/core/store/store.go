package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/insightdeck/insightdeck/internal/config"
)

const (
	driverLibsql = "libsql"
	driverMemory = "memory"
	driverRedis  = "redis"
)

// Store keeps admission windows in a libsql database, either a local file
// or a remote Turso database.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open connects to the libsql database described by cfg. Local files get a
// single connection with WAL journaling.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if driver := strings.TrimSpace(cfg.Driver); driver != "" && driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	dsn, local, err := libsqlDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	if local {
		if err := tuneLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{DB: db, driver: driverLibsql}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// libsqlDSN resolves the connection string. local reports whether it names
// a file on this machine. URL wins over Path.
func libsqlDSN(cfg config.StoreConfig) (dsn string, local bool, err error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		dsn, err = withAuthToken(remote, cfg.AuthToken)
		return dsn, false, err
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return "", false, errors.New("store path or url is required")
	case path == ":memory:", strings.HasPrefix(path, "libsql:"):
		return path, false, nil
	case strings.HasPrefix(path, "file:"):
		parsed, err := url.Parse(path)
		if err != nil {
			return "", false, fmt.Errorf("invalid store path: %w", err)
		}
		file := parsed.Path
		if file == "" {
			file = parsed.Opaque
		}
		if err := makeParentDir(strings.TrimPrefix(file, "//")); err != nil {
			return "", false, err
		}
		return path, true, nil
	default:
		if err := makeParentDir(path); err != nil {
			return "", false, err
		}
		return "file:" + filepath.Clean(path), true, nil
	}
}

func withAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func makeParentDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if path == "" || dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// tuneLocal serializes limiter writes from this process and lets concurrent
// CLI invocations wait on the file lock instead of failing.
func tuneLocal(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"}
	for _, pragma := range pragmas {
		var result string
		if err := db.QueryRowContext(ctx, pragma).Scan(&result); err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(pragma), err)
		}
	}
	return nil
}
