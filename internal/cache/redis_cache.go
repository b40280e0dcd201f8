package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/mmm-collinearity/internal/export"
	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
)

// RedisOperationTimeout bounds every cache round trip.
const RedisOperationTimeout = 2 * time.Second

var _ Store = (*RedisDatasetCache)(nil)

// RedisDatasetCache shares generated datasets between server instances.
// Entries are stored as zstd-compressed JSON and expire through Redis TTLs.
type RedisDatasetCache struct {
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
	logger  *logrus.Logger
	breaker *CircuitBreaker

	mu    sync.Mutex
	stats DatasetCacheStats
}

// NewRedisClient connects to url (redis://host:port/db) and checks the
// connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisDatasetCache creates a Redis-based dataset cache
func NewRedisDatasetCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisDatasetCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisDatasetCache{
		redis:   client,
		ttl:     ttl,
		prefix:  "dataset_cache:",
		logger:  logger,
		breaker: NewCircuitBreaker("redis_dataset_cache", BreakerConfig{}, logger),
	}
}

// WithBreaker replaces the default circuit breaker guarding Redis calls.
func (c *RedisDatasetCache) WithBreaker(cb *CircuitBreaker) *RedisDatasetCache {
	c.breaker = cb
	return c
}

// BreakerState reports whether Redis calls are currently short-circuited.
func (c *RedisDatasetCache) BreakerState() BreakerState {
	return c.breaker.State()
}

// logRedisError logs err unless the breaker rejected the call, which has
// already been logged when it opened.
func (c *RedisDatasetCache) logRedisError(err error, msg string, key string) {
	if errors.Is(err, ErrBreakerOpen) {
		return
	}
	entry := c.logger.WithError(err)
	if key != "" {
		entry = entry.WithField("key", key)
	}
	entry.Warn(msg)
}

func (c *RedisDatasetCache) key(params services.GenerateParams) string {
	return c.prefix + strconv.FormatUint(ParamsKey(params), 16)
}

func (c *RedisDatasetCache) record(update func(*DatasetCacheStats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}

// Get retrieves the dataset for params. Redis and decoding errors are
// logged and count as a miss.
func (c *RedisDatasetCache) Get(params services.GenerateParams) (*models.MarketingDataset, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), RedisOperationTimeout)
	defer cancel()
	key := c.key(params)

	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil || data == nil {
		if err != nil {
			c.logRedisError(err, "Redis error getting cached dataset", key)
		}
		c.record(func(s *DatasetCacheStats) { s.Misses++ })
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error decoding cached dataset")
		c.record(func(s *DatasetCacheStats) { s.Misses++ })
		return nil, false
	}

	c.record(func(s *DatasetCacheStats) { s.Hits++ })
	return entry.Dataset, true
}

// Set stores ds for params with the cache TTL
func (c *RedisDatasetCache) Set(params services.GenerateParams, ds *models.MarketingDataset) {
	ctx, cancel := context.WithTimeout(context.Background(), RedisOperationTimeout)
	defer cancel()
	key := c.key(params)

	now := time.Now()
	data, err := encodeEntry(DatasetCacheEntry{Dataset: ds, CachedAt: now, ExpiresAt: now.Add(c.ttl)})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error encoding dataset for cache")
		return
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.redis.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		c.logRedisError(err, "Redis error caching dataset", key)
		return
	}
	c.record(func(s *DatasetCacheStats) { s.Sets++ })

	c.logger.WithFields(logrus.Fields{
		"scenario": params.Scenario.String(),
		"bytes":    len(data),
		"ttl":      c.ttl.String(),
	}).Debug("Cached generated dataset in Redis")
}

func encodeEntry(entry DatasetCacheEntry) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return export.Compress(raw), nil
}

func decodeEntry(data []byte) (*DatasetCacheEntry, error) {
	raw, err := export.Decompress(data)
	if err != nil {
		return nil, err
	}
	var entry DatasetCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	if entry.Dataset == nil {
		return nil, errors.New("cached entry has no dataset")
	}
	return &entry, nil
}

// GetOrGenerate returns the cached dataset for params, generating and
// caching it on a miss.
func (c *RedisDatasetCache) GetOrGenerate(params services.GenerateParams, generate GenerateFunc) (*models.MarketingDataset, error) {
	return getOrGenerate(c, params, generate)
}

// Warm pre-generates base for every scenario not yet in Redis.
func (c *RedisDatasetCache) Warm(base services.GenerateParams, scenarios []models.Scenario, generate GenerateFunc) int {
	return warm(c, c.logger, base, scenarios, generate)
}

// GetStats returns this instance's cache statistics
func (c *RedisDatasetCache) GetStats() DatasetCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *RedisDatasetCache) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("error scanning cache keys: %w", err)
		}
		return nil
	})
	return keys, err
}

// Len returns the number of cached datasets, or 0 when Redis is unreachable.
func (c *RedisDatasetCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), RedisOperationTimeout)
	defer cancel()
	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.logRedisError(err, "Failed to count cached datasets", "")
		return 0
	}
	return len(keys)
}

// LogStats logs current cache performance statistics
func (c *RedisDatasetCache) LogStats() {
	stats := c.GetStats()
	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": stats.HitRate(),
		"entries":  c.Len(),
		"backend":  "redis",
		"breaker":  c.BreakerState().String(),
	}).Info("Dataset cache stats")
}

// Clear removes all cached datasets
func (c *RedisDatasetCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), RedisOperationTimeout)
	defer cancel()

	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.logRedisError(err, "Failed to clear dataset cache", "")
		return
	}
	if len(keys) == 0 {
		return
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.redis.Del(ctx, keys...).Err()
	})
	if err != nil {
		c.logRedisError(err, "Failed to clear dataset cache", "")
		return
	}
	c.logger.WithField("entries", len(keys)).Info("Cleared dataset cache")
}

// Close releases the Redis connection pool
func (c *RedisDatasetCache) Close() error {
	return c.redis.Close()
}
