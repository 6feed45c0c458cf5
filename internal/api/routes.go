package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/finmetrics-go/internal/api/handlers"
	"github.com/irfndi/finmetrics-go/internal/cache"
	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/irfndi/finmetrics-go/internal/database"
	"github.com/irfndi/finmetrics-go/internal/ingest"
	"github.com/irfndi/finmetrics-go/internal/logging"
	"github.com/irfndi/finmetrics-go/internal/metrics"
	"github.com/irfndi/finmetrics-go/internal/middleware"
	"github.com/irfndi/finmetrics-go/internal/services"
	"github.com/sirupsen/logrus"
)

// Dependencies are the collaborators the routes are built from. Redis,
// Breaker and Metrics may be nil.
type Dependencies struct {
	Config  *config.Config
	Reports *services.ReportService
	Reader  *ingest.Reader
	Redis   *database.RedisClient
	Breaker *cache.CircuitBreaker
	Metrics *metrics.MetricsCollector
	Logger  *logrus.Logger
	HTTPLog *logging.StandardLogger
	Version string
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	var recorder middleware.RequestRecorder
	var system handlers.SystemRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
		system = deps.Metrics
	}

	router.Use(middleware.RequestID(), middleware.RequestLogger(deps.HTTPLog, recorder))

	healthHandler := handlers.NewHealthHandler(deps.Redis, deps.Breaker, system, deps.Version, deps.Logger)
	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	reportHandler := handlers.NewReportHandler(deps.Reports, deps.Reader, deps.Config.Server.MaxUploadMB, deps.Logger)
	calculatorHandler := handlers.NewCalculatorHandler(deps.Reports.Suite(), deps.Reports.Forecaster())
	var limiterLog *slog.Logger
	if deps.HTTPLog != nil {
		limiterLog = deps.HTTPLog.WithComponent("rate_limiter")
	}
	limiter := middleware.NewRateLimiter(deps.Config.Server.RateLimitRPS, deps.Config.Server.RateLimitBurst, limiterLog)

	v1 := router.Group("/api/v1")
	v1.Use(limiter.Handler())
	{
		reports := v1.Group("/reports")
		{
			reports.POST("", reportHandler.GenerateReport)
			reports.POST("/upload", reportHandler.UploadReport)
		}

		v1.POST("/schema/map", reportHandler.MapSchema)
		v1.POST("/forecast", calculatorHandler.Forecast)

		calculators := v1.Group("/calculators")
		{
			calculators.POST("/roi", calculatorHandler.ROI)
			calculators.POST("/npv", calculatorHandler.NPV)
			calculators.POST("/irr", calculatorHandler.IRR)
			calculators.POST("/wacc", calculatorHandler.WACC)
			calculators.POST("/break-even", calculatorHandler.BreakEven)
		}
	}
}
