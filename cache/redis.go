package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quotelab/feedgate/logger"
)

// Redis is a Store backed by a Redis server.
//
// Entries are written without TTL so stale values survive restarts and
// remain available as fallbacks. Clear is the only eviction path. All
// keys carry the configured prefix followed by a colon separator.
type Redis[V any] struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedis creates a Redis-backed store from configuration.
func NewRedis[V any](cfg RedisConfig, log *logger.Logger) (*Redis[V], error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis store is disabled")
	}

	dialTimeout, _ := time.ParseDuration(cfg.DialTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.WriteTimeout)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	log.Info("redis cache store created", map[string]interface{}{
		"addr":       cfg.Addr,
		"db":         cfg.DB,
		"key_prefix": cfg.KeyPrefix,
	})

	return &Redis[V]{rdb: rdb, prefix: cfg.KeyPrefix, log: log}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests that run
// against an in-memory server.
func NewRedisWithClient[V any](rdb *goredis.Client, keyPrefix string, log *logger.Logger) *Redis[V] {
	return &Redis[V]{rdb: rdb, prefix: keyPrefix, log: log}
}

func (s *Redis[V]) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Load deserializes the entry for key. Returns (nil, nil) on a miss.
func (s *Redis[V]) Load(ctx context.Context, key string) (*Entry[V], error) {
	raw, err := s.rdb.Get(ctx, s.fullKey(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache load %q: %w", key, err)
	}

	var entry Entry[V]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("cache unmarshal %q: %w", key, err)
	}
	return &entry, nil
}

// Save serializes the entry and stores it without expiration.
func (s *Redis[V]) Save(ctx context.Context, key string, entry Entry[V]) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache marshal %q: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.fullKey(key), string(data), 0).Err(); err != nil {
		return fmt.Errorf("cache save %q: %w", key, err)
	}
	return nil
}

// Clear removes entries under prefix using SCAN so large keyspaces do
// not block the server. An empty prefix clears every key under the
// store's key prefix.
func (s *Redis[V]) Clear(ctx context.Context, prefix string) (int, error) {
	match := s.fullKey(prefix) + "*"

	var cursor uint64
	removed := 0
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("cache clear scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("cache clear delete: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// Ping verifies the Redis connection is alive.
func (s *Redis[V]) Ping(ctx context.Context) error {
	pong, err := s.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// Close closes the Redis connection. Safe to call multiple times.
func (s *Redis[V]) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.log.Info("closing redis cache store")
	s.closed = true
	return s.rdb.Close()
}

// compile-time interface check
var _ Store[any] = (*Redis[any])(nil)
