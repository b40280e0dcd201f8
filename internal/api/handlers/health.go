package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/mmm-collinearity/internal/cache"
)

var startTime = time.Now()

// MemoryReader abstracts host memory statistics so tests can stub them.
type MemoryReader func(ctx context.Context) (*mem.VirtualMemoryStat, error)

type HealthHandler struct {
	version    string
	readMemory MemoryReader
	datasets   cache.Store
}

type MemoryStats struct {
	HostTotalBytes     uint64  `json:"host_total_bytes"`
	HostAvailableBytes uint64  `json:"host_available_bytes"`
	HostUsedPercent    float64 `json:"host_used_percent"`
	HeapAllocBytes     uint64  `json:"heap_alloc_bytes"`
	Goroutines         int     `json:"goroutines"`
}

type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Uptime    string      `json:"uptime"`
	CPUs      int         `json:"cpus"`
	Memory    MemoryStats `json:"memory"`
	Warning   string      `json:"warning,omitempty"`

	DatasetCache *DatasetCacheStatus `json:"dataset_cache,omitempty"`
}

type DatasetCacheStatus struct {
	cache.DatasetCacheStats
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

func NewHealthHandler(version string, readMemory MemoryReader) *HealthHandler {
	if readMemory == nil {
		readMemory = mem.VirtualMemoryWithContext
	}
	return &HealthHandler{version: version, readMemory: readMemory}
}

// WithDatasetCache reports c's statistics in the health response.
func (h *HealthHandler) WithDatasetCache(c cache.Store) *HealthHandler {
	h.datasets = c
	return h
}

// HealthCheck handles GET /health. The service has no external dependencies,
// so it is healthy whenever it can answer; host statistics are best effort.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
		CPUs:      runtime.NumCPU(),
		Memory: MemoryStats{
			HeapAllocBytes: ms.HeapAlloc,
			Goroutines:     runtime.NumGoroutine(),
		},
	}

	if counts, err := cpu.CountsWithContext(ctx, true); err == nil && counts > 0 {
		response.CPUs = counts
	}

	if vm, err := h.readMemory(ctx); err != nil {
		response.Warning = "host memory unavailable: " + err.Error()
	} else {
		response.Memory.HostTotalBytes = vm.Total
		response.Memory.HostAvailableBytes = vm.Available
		response.Memory.HostUsedPercent = vm.UsedPercent
	}

	if h.datasets != nil {
		stats := h.datasets.GetStats()
		response.DatasetCache = &DatasetCacheStatus{
			DatasetCacheStats: stats,
			Entries:           h.datasets.Len(),
			HitRate:           stats.HitRate(),
		}
	}

	c.JSON(http.StatusOK, response)
}
