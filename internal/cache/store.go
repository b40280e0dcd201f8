package cache

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
)

// Store caches generated datasets keyed by their generation parameters.
// Generation is deterministic for a given seed, so a cached dataset is
// identical to a regenerated one.
type Store interface {
	Get(params services.GenerateParams) (*models.MarketingDataset, bool)
	Set(params services.GenerateParams, ds *models.MarketingDataset)
	GetOrGenerate(params services.GenerateParams, generate GenerateFunc) (*models.MarketingDataset, error)
	Warm(base services.GenerateParams, scenarios []models.Scenario, generate GenerateFunc) int
	GetStats() DatasetCacheStats
	Len() int
	LogStats()
	Clear()
}

// DatasetCacheEntry represents a generated dataset with its cache metadata
type DatasetCacheEntry struct {
	Dataset   *models.MarketingDataset `json:"dataset"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// DatasetCacheStats tracks cache performance metrics
type DatasetCacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns hits as a percentage of lookups.
func (s DatasetCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// GenerateFunc produces the dataset for a set of generation parameters.
type GenerateFunc func(services.GenerateParams) (*models.MarketingDataset, error)

// ParamsKey hashes generation parameters into a cache key.
func ParamsKey(params services.GenerateParams) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(params.Scenario.String())
	_, _ = h.Write([]byte{0})
	data, _ := json.Marshal(params)
	_, _ = h.Write(data)
	return h.Sum64()
}

func getOrGenerate(s Store, params services.GenerateParams, generate GenerateFunc) (*models.MarketingDataset, error) {
	if ds, ok := s.Get(params); ok {
		return ds, nil
	}
	ds, err := generate(params)
	if err != nil {
		return nil, err
	}
	s.Set(params, ds)
	return ds, nil
}

func warm(s Store, logger *logrus.Logger, base services.GenerateParams, scenarios []models.Scenario, generate GenerateFunc) int {
	warmed := 0
	for _, scenario := range scenarios {
		params := base
		params.Scenario = scenario
		if _, ok := s.Get(params); ok {
			continue
		}
		ds, err := generate(params)
		if err != nil {
			logger.WithError(err).WithField("scenario", scenario.String()).Warn("Failed to warm dataset cache")
			continue
		}
		s.Set(params, ds)
		warmed++
	}

	logger.WithField("warmed", warmed).Info("Dataset cache warming completed")
	return warmed
}
