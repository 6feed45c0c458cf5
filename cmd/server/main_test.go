package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/irfndi/finmetrics-go/internal/api"
	"github.com/irfndi/finmetrics-go/internal/cache"
	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/ingest"
	"github.com/irfndi/finmetrics-go/internal/logging"
	"github.com/irfndi/finmetrics-go/internal/services"
	"github.com/irfndi/finmetrics-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		LogLevel:    "error",
		Server: config.ServerConfig{
			Port:           9090,
			RateLimitRPS:   100,
			RateLimitBurst: 100,
			MaxUploadMB:    1,
		},
		Telemetry: config.TelemetryConfig{ServiceName: "finmetrics-test", ServiceVersion: "0.0.1"},
		Engine: config.EngineConfig{
			FuzzyThreshold:       0.75,
			VolatilityThreshold:  0.01,
			SeasonalityThreshold: 0.1,
			SeasonalPeriod:       12,
			ForecastHorizon:      6,
			MovingAverageWindow:  3,
			IRRTolerance:         1e-6,
			IRRMaxIterations:     1000,
		},
		Assumptions: config.AssumptionsConfig{DiscountRate: 0.1, CostOfEquity: 0.12, CostOfDebt: 0.06, TaxRate: 0.3, RiskFreeRate: 0.05},
	}
}

func TestNewHTTPServer(t *testing.T) {
	cfg := testConfig()

	srv := newHTTPServer(cfg, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)

	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = 2 * time.Second
	srv = newHTTPServer(cfg, http.NotFoundHandler())
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
}

func TestNewRouter(t *testing.T) {
	cfg := testConfig()
	logger := logging.NewDiscardLogrusLogger()

	router := newRouter(cfg, api.Dependencies{
		Config:  cfg,
		Reports: services.NewReportService(cfg.Engine, cfg.Assumptions, nil, nil, logger),
		Reader:  ingest.NewReader(logger),
		Logger:  logger,
		Version: "0.0.1",
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectCache(t *testing.T) {
	logger := logging.NewDiscardLogrusLogger()

	t.Run("disabled", func(t *testing.T) {
		client, c := connectCache(testConfig(), logger)
		assert.Nil(t, client)
		assert.Nil(t, c)
	})

	t.Run("enabled", func(t *testing.T) {
		_, server := testutil.SetupMiniRedis(t)
		port, err := strconv.Atoi(server.Port())
		require.NoError(t, err)

		cfg := testConfig()
		cfg.Redis = config.RedisConfig{Enabled: true, Host: server.Host(), Port: port, MappingTTL: time.Hour}
		client, c := connectCache(cfg, logger)
		require.NotNil(t, client)
		require.NotNil(t, c)
		defer client.Close()
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		_, server := testutil.SetupMiniRedis(t)
		port, err := strconv.Atoi(server.Port())
		require.NoError(t, err)
		server.Close()

		cfg := testConfig()
		cfg.Redis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: port}
		client, c := connectCache(cfg, logger)
		assert.Nil(t, client)
		assert.Nil(t, c)
	})
}

func TestReportCacheStats_StopsOnCancel(t *testing.T) {
	rdb, _ := testutil.SetupMiniRedis(t)
	c := cache.NewRedisMappingCache(rdb, time.Hour, "test", logging.NewDiscardLogrusLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reportCacheStats(ctx, c, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reportCacheStats did not stop")
	}
}
