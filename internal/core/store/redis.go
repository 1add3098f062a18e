package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/core"
)

const (
	fieldRequestCount = "request_count"
	fieldWindowStart  = "window_start_ms"
	scanBatch         = 100
)

// admitScript checks and counts one request in a single round trip. It returns
// {1, 0} when admitted and {0, wait_ms} when the quota is exhausted.
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local length = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local count = tonumber(redis.call("HGET", KEYS[1], "request_count") or "0")
local start = tonumber(redis.call("HGET", KEYS[1], "window_start_ms") or "0")
if now - start >= length then
  count = 0
  start = now
end
if count >= limit then
  local wait = length - (now - start)
  if wait > length then
    wait = length
  end
  return {0, wait}
end
if count == 0 then
  start = now
end
redis.call("HSET", KEYS[1], "request_count", count + 1, "window_start_ms", start)
return {1, 0}
`)

// sweepScript deletes a window that started at least ARGV[2] ms before ARGV[1].
var sweepScript = redis.NewScript(`
local start = redis.call("HGET", KEYS[1], "window_start_ms")
if not start then
  return 0
end
if tonumber(ARGV[1]) - tonumber(start) >= tonumber(ARGV[2]) then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisWindowStore keeps admission windows in redis hashes so that several
// processes share one quota.
type RedisWindowStore struct {
	client *redis.Client
	prefix string
}

// NewRedisWindowStore connects to redis and verifies the connection.
func NewRedisWindowStore(ctx context.Context, cfg config.RedisConfig) (*RedisWindowStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisWindowStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisWindowStoreFromClient wraps an existing client.
func NewRedisWindowStoreFromClient(client *redis.Client, prefix string) *RedisWindowStore {
	return &RedisWindowStore{client: client, prefix: strings.TrimSpace(prefix)}
}

func (r *RedisWindowStore) LoadWindow(ctx context.Context, key string) (*core.AdmissionWindow, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("window key is required")
	}

	fields, err := r.client.HGetAll(ctx, r.buildKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch admission window: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	count, err := strconv.Atoi(fields[fieldRequestCount])
	if err != nil {
		return nil, fmt.Errorf("decode admission window %s: %w", key, err)
	}
	startMs, err := strconv.ParseInt(fields[fieldWindowStart], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode admission window %s: %w", key, err)
	}

	return &core.AdmissionWindow{
		WindowStart:  time.UnixMilli(startMs).UTC(),
		RequestCount: count,
	}, nil
}

func (r *RedisWindowStore) SaveWindow(ctx context.Context, key string, window *core.AdmissionWindow) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("window key is required")
	}
	if window == nil {
		return errors.New("admission window is required")
	}

	err := r.client.HSet(ctx, r.buildKey(key),
		fieldRequestCount, window.RequestCount,
		fieldWindowStart, window.WindowStart.UTC().UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("store admission window: %w", err)
	}
	return nil
}

func (r *RedisWindowStore) ClearWindow(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.buildKey(strings.TrimSpace(key))).Err(); err != nil {
		return fmt.Errorf("clear admission window: %w", err)
	}
	return nil
}

func (r *RedisWindowStore) TryAdmit(ctx context.Context, key string, limit int, length time.Duration, now time.Time) (bool, time.Duration, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, 0, errors.New("window key is required")
	}

	res, err := admitScript.Run(ctx, r.client, []string{r.buildKey(key)},
		now.UTC().UnixMilli(), length.Milliseconds(), limit,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("admit request: %w", err)
	}
	if len(res) != 2 {
		return false, 0, errors.New("admit request: unexpected script response")
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	wait := time.Duration(res[1]) * time.Millisecond
	if wait < 0 {
		wait = 0
	}
	return false, wait, nil
}

func (r *RedisWindowStore) ClearExpiredWindow(ctx context.Context, key string, length time.Duration, now time.Time) (bool, error) {
	deleted, err := sweepScript.Run(ctx, r.client, []string{r.buildKey(strings.TrimSpace(key))},
		now.UTC().UnixMilli(), length.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("clear expired admission window: %w", err)
	}
	return deleted > 0, nil
}

func (r *RedisWindowStore) ListWindows(ctx context.Context, q WindowQuery) ([]WindowEntry, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return nil, err
	}

	entries := make([]WindowEntry, 0, len(keys))
	for _, key := range keys {
		window, err := r.LoadWindow(ctx, key)
		if err != nil {
			return nil, err
		}
		if window == nil {
			continue
		}
		entries = append(entries, WindowEntry{Key: key, Window: *window})
	}
	sortEntries(entries)
	return entries, nil
}

func (r *RedisWindowStore) CountWindows(ctx context.Context, q WindowQuery) (int, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *RedisWindowStore) ResetWindows(ctx context.Context, q WindowQuery) (int64, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = r.buildKey(key)
	}
	deleted, err := r.client.Del(ctx, redisKeys...).Result()
	if err != nil {
		return 0, fmt.Errorf("reset admission windows: %w", err)
	}
	return deleted, nil
}

func (r *RedisWindowStore) Driver() string { return driverRedis }

func (r *RedisWindowStore) Close() error {
	return r.client.Close()
}

// matchingKeys scans the window namespace and returns limiter keys selected by q.
func (r *RedisWindowStore) matchingKeys(ctx context.Context, q WindowQuery) ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	namespace := r.buildKey("")
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, namespace+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan admission windows: %w", err)
		}
		for _, redisKey := range batch {
			key := strings.TrimPrefix(redisKey, namespace)
			if q.Matches(key) {
				keys = append(keys, key)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (r *RedisWindowStore) buildKey(key string) string {
	if r.prefix == "" {
		return "window:" + key
	}
	return r.prefix + ":window:" + key
}
