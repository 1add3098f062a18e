package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/core/engine"
)

// Backend is a window store that can also be inspected and reset by operators.
type Backend interface {
	engine.WindowStore

	ListWindows(ctx context.Context, q WindowQuery) ([]WindowEntry, error)
	CountWindows(ctx context.Context, q WindowQuery) (int, error)
	ResetWindows(ctx context.Context, q WindowQuery) (int64, error)
	Driver() string
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisWindowStore)(nil)
)

// OpenBackend opens the window backend named by cfg.Driver. libsql databases
// are migrated before they are returned.
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case driverMemory:
		return NewMemoryBackend(), nil
	case driverRedis:
		rs, err := NewRedisWindowStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "", driverLibsql:
		st, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
