package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisStore keeps runs as JSON in a capped redis list, newest first.
type RedisStore struct {
	redis      *redis.Client
	key        Key
	maxEntries int64
	owned      bool
}

// NewRedisStore creates a store on an existing client. The caller keeps
// ownership of redisClient; Close does not close it.
func NewRedisStore(redisClient *redis.Client, key Key, maxEntries int64) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &RedisStore{
		redis:      redisClient,
		key:        key,
		maxEntries: maxEntries,
	}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store that owns
// its client.
func NewRedisStoreFromURL(rawURL string, maxEntries int64) (*RedisStore, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	store := NewRedisStore(redis.NewClient(opts), Key{}, maxEntries)
	store.owned = true
	return store, nil
}

// Save pushes run to the head of the list and trims it to MaxEntries.
func (s *RedisStore) Save(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		HistoryWrites.WithLabelValues(backendRedis, "error").Inc()
		return fmt.Errorf("marshal run: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, s.key.String(), data)
	pipe.LTrim(ctx, s.key.String(), 0, s.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		HistoryWrites.WithLabelValues(backendRedis, "error").Inc()
		HistoryErrors.WithLabelValues(backendRedis, "save").Inc()
		return fmt.Errorf("redis lpush: %w", err)
	}

	HistoryWrites.WithLabelValues(backendRedis, "ok").Inc()
	return nil
}

// Recent returns up to limit runs, newest first. Entries that fail to decode
// are skipped.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	limit = clampLimit(limit)

	values, err := s.redis.LRange(ctx, s.key.String(), 0, int64(limit-1)).Result()
	if err != nil {
		HistoryErrors.WithLabelValues(backendRedis, "recent").Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	runs := make([]Run, 0, len(values))
	for _, v := range values {
		var run Run
		if err := json.Unmarshal([]byte(v), &run); err != nil {
			HistoryErrors.WithLabelValues(backendRedis, "decode").Inc()
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Ping checks the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		HistoryErrors.WithLabelValues(backendRedis, "ping").Inc()
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.redis.Close()
}
