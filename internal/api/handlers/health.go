package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/finmetrics-go/internal/cache"
	"github.com/irfndi/finmetrics-go/internal/database"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

var startTime = time.Now()

// SystemRecorder receives resource gauges sampled by the health check.
type SystemRecorder interface {
	RecordSystemMetrics(memoryUsedPercent float64, goroutines int)
}

type HealthHandler struct {
	redis    *database.RedisClient
	breaker  *cache.CircuitBreaker
	recorder SystemRecorder
	version  string
	logger   *logrus.Logger
}

type SystemStats struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	Goroutines        int     `json:"goroutines"`
}

// BreakerStatus is the mapping cache circuit breaker as seen by /health.
type BreakerStatus struct {
	State string             `json:"state"`
	Stats cache.BreakerStats `json:"stats"`
}

type HealthResponse struct {
	Status         string            `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
	Services       map[string]string `json:"services"`
	Version        string            `json:"version"`
	Uptime         string            `json:"uptime"`
	System         SystemStats       `json:"system"`
	CircuitBreaker *BreakerStatus    `json:"circuit_breaker,omitempty"`
}

// NewHealthHandler creates a HealthHandler. A nil redis client means the
// cache is disabled, which does not degrade health. An open breaker does.
func NewHealthHandler(redis *database.RedisClient, breaker *cache.CircuitBreaker, recorder SystemRecorder, version string, logger *logrus.Logger) *HealthHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthHandler{
		redis:    redis,
		breaker:  breaker,
		recorder: recorder,
		version:  version,
		logger:   logger,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{"engine": "healthy"}
	overallStatus := "healthy"

	if h.redis == nil {
		services["redis"] = "disabled"
	} else if err := h.redis.HealthCheck(ctx); err != nil {
		services["redis"] = "unhealthy: " + err.Error()
		overallStatus = "degraded"
	} else {
		services["redis"] = "healthy"
	}

	var breaker *BreakerStatus
	if h.breaker != nil {
		state := h.breaker.State()
		breaker = &BreakerStatus{State: state.String(), Stats: h.breaker.Stats()}
		services["mapping_cache"] = "circuit " + state.String()
		if state == cache.Open {
			overallStatus = "degraded"
		}
	}

	system := SystemStats{Goroutines: runtime.NumGoroutine()}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		system.MemoryUsedPercent = vm.UsedPercent
		system.MemoryTotalBytes = vm.Total
	} else {
		h.logger.WithError(err).Debug("Failed to read memory stats")
	}
	if h.recorder != nil {
		h.recorder.RecordSystemMetrics(system.MemoryUsedPercent, system.Goroutines)
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{
		Status:         overallStatus,
		Timestamp:      time.Now(),
		Services:       services,
		Version:        h.version,
		Uptime:         time.Since(startTime).String(),
		System:         system,
		CircuitBreaker: breaker,
	})
}

// LivenessCheck only reports that the process is serving.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
