package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/finmetrics-go/internal/api"
	"github.com/irfndi/finmetrics-go/internal/cache"
	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/database"
	"github.com/irfndi/finmetrics-go/internal/ingest"
	"github.com/irfndi/finmetrics-go/internal/logging"
	"github.com/irfndi/finmetrics-go/internal/metrics"
	"github.com/irfndi/finmetrics-go/internal/services"
	"github.com/irfndi/finmetrics-go/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const cacheStatsInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrusLogger := logging.NewLogrusLogger(cfg.LogLevel, cfg.Environment)

	provider, err := telemetry.InitTelemetryWithProvider(ctx, &telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		SampleRate:     cfg.Telemetry.SampleRate,
		LogLevel:       cfg.Telemetry.LogLevel,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logrusLogger.WithError(err).Error("Failed to shutdown telemetry")
		}
	}()

	httpLog := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint != "" {
		httpLog = logging.NewStandardLoggerFromSlog(provider.Logger())
	}
	collector := metrics.NewMetricsCollector(httpLog, cfg.Telemetry.ServiceName)

	redisClient, mappingCache := connectCache(cfg, logrusLogger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	var (
		reportCache services.MappingCache
		breaker     *cache.CircuitBreaker
	)
	if mappingCache != nil {
		breaker = cache.NewCircuitBreaker("redis-mapping-cache", cache.DefaultBreakerConfig(), logrusLogger)
		reportCache = cache.NewGuardedMappingCache(mappingCache, breaker)
		go reportCacheStats(ctx, mappingCache, cacheStatsInterval)
	}

	reportService := services.NewReportService(cfg.Engine, cfg.Assumptions, reportCache, collector, logrusLogger)
	router := newRouter(cfg, api.Dependencies{
		Config:  cfg,
		Reports: reportService,
		Reader:  ingest.NewReader(logrusLogger),
		Redis:   redisClient,
		Breaker: breaker,
		Metrics: collector,
		Logger:  logrusLogger,
		HTTPLog: httpLog,
		Version: cfg.Telemetry.ServiceVersion,
	})
	srv := newHTTPServer(cfg, router)

	serverErr := make(chan error, 1)
	go func() {
		httpLog.LogStartup(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		httpLog.LogShutdown(cfg.Telemetry.ServiceName, "signal received")
	}

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrusLogger.Info("Server exited gracefully")
	return nil
}

// connectCache opens Redis when enabled. A failed connection is logged and
// the service runs without the mapping cache.
func connectCache(cfg *config.Config, logger *logrus.Logger) (*database.RedisClient, *cache.RedisMappingCache) {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, field mappings will not be cached")
		return nil, nil
	}
	client, err := database.NewRedisConnection(cfg.Redis, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, continuing without mapping cache")
		return nil, nil
	}
	namespace := fmt.Sprintf("fuzzy=%g", cfg.Engine.FuzzyThreshold)
	return client, cache.NewRedisMappingCache(client.Client, cfg.Redis.MappingTTL, namespace, logger)
}

func reportCacheStats(ctx context.Context, c *cache.RedisMappingCache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.LogStats()
		}
	}
}

func newRouter(cfg *config.Config, deps api.Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	api.SetupRoutes(router, deps)
	return router
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	readTimeout := cfg.Server.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
