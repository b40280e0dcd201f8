package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
)

var _ Store = (*DatasetCache)(nil)

// DatasetCache keeps generated datasets in process memory.
type DatasetCache struct {
	mu         sync.Mutex
	entries    map[uint64]*DatasetCacheEntry
	ttl        time.Duration
	maxEntries int
	stats      DatasetCacheStats
	logger     *logrus.Logger
	now        func() time.Time
}

// NewDatasetCache creates a cache holding at most maxEntries datasets for ttl each
func NewDatasetCache(ttl time.Duration, maxEntries int, logger *logrus.Logger) *DatasetCache {
	if logger == nil {
		logger = logrus.New()
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &DatasetCache{
		entries:    make(map[uint64]*DatasetCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns a copy of the dataset cached for params. Expired entries are
// dropped and count as a miss.
func (c *DatasetCache) Get(params services.GenerateParams) (*models.MarketingDataset, bool) {
	key := ParamsKey(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok && c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.stats.Evictions++
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	return entry.Dataset.Clone(), true
}

// Set stores a copy of ds for params, evicting the oldest entry when full
func (c *DatasetCache) Set(params services.GenerateParams, ds *models.MarketingDataset) {
	key := ParamsKey(params)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &DatasetCacheEntry{
		Dataset:   ds.Clone(),
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.stats.Sets++

	c.logger.WithFields(logrus.Fields{
		"scenario": params.Scenario.String(),
		"periods":  params.Periods,
		"seed":     params.Seed,
		"ttl":      c.ttl.String(),
	}).Debug("Cached generated dataset")
}

func (c *DatasetCache) evictOldestLocked() {
	var (
		oldestKey uint64
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.CachedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.CachedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// GetOrGenerate returns the cached dataset for params, generating and
// caching it on a miss. Generation errors are not cached.
func (c *DatasetCache) GetOrGenerate(params services.GenerateParams, generate GenerateFunc) (*models.MarketingDataset, error) {
	return getOrGenerate(c, params, generate)
}

// GetStats returns current cache statistics
func (c *DatasetCache) GetStats() DatasetCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of cached datasets, expired ones included.
func (c *DatasetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// LogStats logs current cache performance statistics
func (c *DatasetCache) LogStats() {
	stats := c.GetStats()
	c.logger.WithFields(logrus.Fields{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"sets":      stats.Sets,
		"evictions": stats.Evictions,
		"hit_rate":  stats.HitRate(),
		"entries":   c.Len(),
	}).Info("Dataset cache stats")
}

// Clear removes all cached datasets
func (c *DatasetCache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[uint64]*DatasetCacheEntry)
	c.mu.Unlock()

	c.logger.WithField("entries", n).Info("Cleared dataset cache")
}

// Warm pre-generates base for every scenario so the first requests for the
// default parameters hit the cache. Failures are logged and skipped.
func (c *DatasetCache) Warm(base services.GenerateParams, scenarios []models.Scenario, generate GenerateFunc) int {
	return warm(c, c.logger, base, scenarios, generate)
}
