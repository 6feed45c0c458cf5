package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/irfndi/finmetrics-go/internal/logging"
	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package metrics records application metrics twice: as structured debug log
// lines and as Prometheus series on a private registry.

// MetricType represents the type of metric being recorded.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeTiming    MetricType = "timing"
)

// Metric represents a standardized metric structure.
type Metric struct {
	Name      string                 `json:"name"`
	Type      MetricType             `json:"type"`
	Value     float64                `json:"value"`
	Unit      string                 `json:"unit"`
	Timestamp time.Time              `json:"timestamp"`
	Tags      map[string]string      `json:"tags,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// MetricsCollector provides standardized metrics collection.
type MetricsCollector struct {
	logger      *logging.StandardLogger
	serviceName string
	registry    *prometheus.Registry

	apiRequests    *prometheus.CounterVec
	apiDuration    *prometheus.HistogramVec
	reports        *prometheus.CounterVec
	reportDuration prometheus.Histogram
	metricStatus   *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	ingestFailures *prometheus.CounterVec
	cacheOps       *prometheus.CounterVec
	memoryUsed     prometheus.Gauge
}

// NewMetricsCollector creates a collector with its own Prometheus registry.
//
// Parameters:
//
//	logger: Standard logger.
//	serviceName: Name of the service.
//
// Returns:
//
//	*MetricsCollector: Initialized collector.
func NewMetricsCollector(logger *logging.StandardLogger, serviceName string) *MetricsCollector {
	if logger == nil {
		logger = logging.NewStandardLogger("info", "development")
	}
	labels := prometheus.Labels{"service": serviceName}
	mc := &MetricsCollector{
		logger:      logger,
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "finmetrics_api_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: labels,
		}, []string{"method", "endpoint", "status_code"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "finmetrics_api_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "finmetrics_reports_total",
			Help:        "Generated reports by industry.",
			ConstLabels: labels,
		}, []string{"industry"}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "finmetrics_report_duration_seconds",
			Help:        "End-to-end report generation time.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		metricStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "finmetrics_metric_results_total",
			Help:        "Calculator outcomes by status.",
			ConstLabels: labels,
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "finmetrics_stage_duration_seconds",
			Help:        "Duration of report stages.",
			ConstLabels: labels,
			Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"stage"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "finmetrics_ingestion_failures_total",
			Help:        "Datasets rejected before computation.",
			ConstLabels: labels,
		}, []string{"source"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "finmetrics_cache_operations_total",
			Help:        "Mapping cache lookups by outcome.",
			ConstLabels: labels,
		}, []string{"operation", "hit"}),
		memoryUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "finmetrics_system_memory_used_percent",
			Help:        "Host memory usage sampled by the health check.",
			ConstLabels: labels,
		}),
	}
	mc.registry.MustRegister(
		mc.apiRequests,
		mc.apiDuration,
		mc.reports,
		mc.reportDuration,
		mc.metricStatus,
		mc.stageDuration,
		mc.ingestFailures,
		mc.cacheOps,
		mc.memoryUsed,
		collectors.NewGoCollector(),
	)
	return mc
}

// Handler serves the registry in the Prometheus exposition format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

// RecordCounter records a counter metric.
func (mc *MetricsCollector) RecordCounter(name string, value float64, tags map[string]string) {
	mc.logMetric(Metric{
		Name:      name,
		Type:      MetricTypeCounter,
		Value:     value,
		Unit:      "count",
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	})
}

// RecordGauge records a gauge metric.
func (mc *MetricsCollector) RecordGauge(name string, value float64, unit string, tags map[string]string) {
	mc.logMetric(Metric{
		Name:      name,
		Type:      MetricTypeGauge,
		Value:     value,
		Unit:      unit,
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	})
}

// RecordTiming records a timing metric.
func (mc *MetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	mc.logMetric(Metric{
		Name:      name,
		Type:      MetricTypeTiming,
		Value:     float64(duration.Milliseconds()),
		Unit:      "ms",
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
	})
}

// RecordBusinessMetric records a business-specific metric with additional fields.
func (mc *MetricsCollector) RecordBusinessMetric(name string, value float64, unit string, tags map[string]string, fields map[string]interface{}) {
	mc.logMetric(Metric{
		Name:      name,
		Type:      MetricTypeGauge,
		Value:     value,
		Unit:      unit,
		Timestamp: time.Now(),
		Tags:      mc.addServiceTag(tags),
		Fields:    fields,
	})
}

// addServiceTag adds the service name to tags
func (mc *MetricsCollector) addServiceTag(tags map[string]string) map[string]string {
	result := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		result[k] = v
	}
	result["service"] = mc.serviceName
	return result
}

// logMetric logs the metric using the standardized logger
func (mc *MetricsCollector) logMetric(metric Metric) {
	mc.logger.Logger().Debug("Metric recorded",
		"event", "metric",
		"metric", metric,
	)
}

// RecordAPIRequestMetrics records standardized API request metrics.
//
// Parameters:
//
//	method: HTTP method.
//	endpoint: Route template, not the raw path.
//	statusCode: HTTP status code.
//	duration: Request duration.
func (mc *MetricsCollector) RecordAPIRequestMetrics(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	mc.apiRequests.WithLabelValues(method, endpoint, status).Inc()
	mc.apiDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())

	tags := map[string]string{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": status,
	}
	mc.RecordCounter("api_requests_total", 1, tags)
	mc.RecordTiming("api_request_duration", duration, tags)
}

// RecordReport records one generated report and the status of every result
// it carries.
func (mc *MetricsCollector) RecordReport(industry string, summary models.StatusSummary, duration time.Duration) {
	mc.reports.WithLabelValues(industry).Inc()
	mc.reportDuration.Observe(duration.Seconds())
	mc.metricStatus.WithLabelValues(string(models.StatusOK)).Add(float64(summary.OK))
	mc.metricStatus.WithLabelValues(string(models.StatusInsufficientData)).Add(float64(summary.InsufficientData))
	mc.metricStatus.WithLabelValues(string(models.StatusInvalidInput)).Add(float64(summary.InvalidInput))
	mc.metricStatus.WithLabelValues(string(models.StatusComputationError)).Add(float64(summary.ComputationError))

	mc.RecordBusinessMetric("report_generated", float64(summary.Total), "count",
		map[string]string{"industry": industry},
		map[string]interface{}{
			"ok":          summary.OK,
			"failed":      summary.Total - summary.OK,
			"duration_ms": duration.Milliseconds(),
		})
	mc.logger.LogBusinessEvent("report_generated", map[string]interface{}{
		"industry": industry,
		"total":    summary.Total,
		"ok":       summary.OK,
	})
}

// RecordStage records the duration of one report stage.
func (mc *MetricsCollector) RecordStage(stage string, duration time.Duration) {
	mc.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	mc.RecordTiming("report_stage_duration", duration, map[string]string{"stage": stage})
}

// RecordIngestionFailure counts a dataset rejected before any computation.
func (mc *MetricsCollector) RecordIngestionFailure(source string) {
	mc.ingestFailures.WithLabelValues(source).Inc()
	mc.RecordCounter("ingestion_failures_total", 1, map[string]string{"source": source})
}

// RecordCacheMetrics records standardized cache operation metrics.
//
// Parameters:
//
//	operation: Cache operation (e.g., "get", "set").
//	key: Cache key.
//	hit: Whether it was a cache hit.
//	duration: Operation duration.
func (mc *MetricsCollector) RecordCacheMetrics(operation, key string, hit bool, duration time.Duration) {
	hitLabel := strconv.FormatBool(hit)
	mc.cacheOps.WithLabelValues(operation, hitLabel).Inc()
	mc.logger.LogCacheOperation(operation, key, hit, duration.Milliseconds())

	tags := map[string]string{
		"operation": operation,
		"hit":       hitLabel,
	}
	mc.RecordCounter("cache_operations_total", 1, tags)
	mc.RecordTiming("cache_operation_duration", duration, tags)
}

// RecordSystemMetrics records host memory usage.
func (mc *MetricsCollector) RecordSystemMetrics(memoryUsedPercent float64, goroutines int) {
	mc.memoryUsed.Set(memoryUsedPercent)
	mc.RecordGauge("system_memory_usage", memoryUsedPercent, "percent", nil)
	mc.RecordGauge("system_goroutines", float64(goroutines), "count", nil)
}
