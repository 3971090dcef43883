package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/go-redis/redis/v8"
)

const cachePrefix = "beatporter:search:"

// NewRedisClient connects to the configured cache, or returns nil when caching is disabled.
func NewRedisClient(cfg shared.CacheConfig) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		DB:          cfg.RedisDB,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
}

// CacheKey is the redis key of a search query.
func CacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return cachePrefix + hex.EncodeToString(sum[:])
}

// CachedSearch serves repeated queries from redis. Cache failures are logged and the
// wrapped backend is used instead.
type CachedSearch struct {
	next   SearchBackend
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedSearch wraps next. With a nil client next is returned unchanged.
func NewCachedSearch(next SearchBackend, client *redis.Client, ttl time.Duration, logger *log.Logger) SearchBackend {
	if client == nil {
		return next
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CachedSearch{next: next, client: client, ttl: ttl, logger: logger}
}

// Search implements [SearchBackend].
func (c *CachedSearch) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	key := CacheKey(query)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var candidates []models.Candidate
		if err := json.Unmarshal(raw, &candidates); err == nil {
			c.logger.Debug("search cache hit", "query", query)
			return candidates, nil
		}
		c.logger.Warn("discarding corrupt search cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("search cache unavailable", "error", err)
	}

	candidates, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(candidates); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("failed to store search result", "error", err)
		}
	}
	return candidates, nil
}

// FlushCache deletes every cached search and returns the number of keys removed.
func FlushCache(ctx context.Context, client *redis.Client) (int, error) {
	if client == nil {
		return 0, fmt.Errorf("%w: cache.redis_addr is empty", shared.ErrMissingConfig)
	}

	var cursor uint64
	removed := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, cachePrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan cache: %w", err)
		}
		if len(keys) > 0 {
			n, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete cache keys: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
