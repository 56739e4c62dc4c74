package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docveil/docveil/internal/entity"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ResultCache stores detection results in Redis keyed by document content
// hash, so re-scanning an unchanged document skips the full pipeline.
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a Redis-backed detection result cache.
func NewResultCache(config *Config, logger *zap.Logger) (*ResultCache, error) {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "docveil"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.MaxConns,
		MinIdleConns: config.MinIdleConns,
	})

	c := &ResultCache{
		client: client,
		config: config,
		logger: logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("addr", config.Addr),
		zap.Duration("default_ttl", config.DefaultTTL))

	return c, nil
}

// Get returns the cached entities for text, or ok=false on a miss. Entries
// produced under a different detector fingerprint count as misses and are
// evicted.
func (c *ResultCache) Get(ctx context.Context, text, fingerprint string) ([]entity.Entity, bool) {
	key := c.key(text)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.logger.Error("Cache lookup failed", zap.Error(err))
		c.misses.Add(1)
		return nil, false
	}

	var cached CachedResult
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		c.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		c.client.Del(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	if cached.Fingerprint != fingerprint {
		c.client.Del(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("key", key), zap.Int("entities", len(cached.Entities)))
	return cached.Entities, true
}

// Store caches one document's detection result.
func (c *ResultCache) Store(ctx context.Context, text, fingerprint string, entities []entity.Entity) error {
	cached := CachedResult{
		Entities:    entities,
		Fingerprint: fingerprint,
		CachedAt:    time.Now(),
		TTL:         int64(c.config.DefaultTTL.Seconds()),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := c.client.Set(ctx, c.key(text), data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// GetStats returns cache performance statistics.
func (c *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "used_memory:") {
			if mem, err := strconv.ParseInt(strings.TrimPrefix(line, "used_memory:"), 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results under our key prefix.
func (c *ResultCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *ResultCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:doc:%s", c.config.KeyPrefix, hex.EncodeToString(sum[:8]))
}
