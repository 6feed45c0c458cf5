package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/irfndi/finmetrics-go/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "github.com/irfndi/finmetrics-go"
	ServiceVersion = "1.0.0"
)

// TelemetryConfig holds configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
	LogLevel       string
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "http://localhost:4318",
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
		LogLevel:       "info",
	}
}

// Provider holds the telemetry provider
type Provider struct {
	Shutdown       func(context.Context) error
	tracerProvider *sdktrace.TracerProvider
	logger         *slog.Logger
}

// Logger returns the provider's logger.
func (p *Provider) Logger() *slog.Logger {
	return p.logger
}

// InitTelemetryWithProvider configures the global tracer provider. Spans are
// exported over OTLP/HTTP when an endpoint is set and written to stdout
// otherwise. A disabled config yields a no-op provider.
func InitTelemetryWithProvider(ctx context.Context, config *TelemetryConfig, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil || !config.Enabled {
		return &Provider{
			Shutdown: func(context.Context) error { return nil },
			logger:   logger,
		}, nil
	}
	applyDefaults(config)

	var exporter sdktrace.SpanExporter
	var logShutdown func(context.Context) error
	if config.OTLPEndpoint != "" {
		hostport, urlPath, insecure, resolved, err := normalizeOTLPEndpoint(config.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid OTLPEndpoint: %w", err)
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(hostport),
			otlptracehttp.WithURLPath(urlPath),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}

		otlpLogger, err := logging.NewOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       hostport,
			ServiceName:    config.ServiceName,
			ServiceVersion: config.ServiceVersion,
			Environment:    config.Environment,
			LogLevel:       config.LogLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP logger: %w", err)
		}
		logger = otlpLogger.Logger()
		logShutdown = otlpLogger.Shutdown
		logger.Info("OTLP trace exporter configured", "endpoint", resolved)
	} else {
		var err error
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	provider := &Provider{
		tracerProvider: tp,
		logger:         logger,
		Shutdown: func(ctx context.Context) error {
			err := tp.Shutdown(ctx)
			if logShutdown != nil {
				if lerr := logShutdown(ctx); lerr != nil && err == nil {
					err = lerr
				}
			}
			return err
		},
	}

	logger.Info("Telemetry initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"sample_rate", config.SampleRate)
	return provider, nil
}

func applyDefaults(config *TelemetryConfig) {
	defaults := DefaultConfig()
	if config.ServiceName == "" {
		config.ServiceName = defaults.ServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = defaults.ServiceVersion
	}
	if config.Environment == "" {
		config.Environment = defaults.Environment
	}
	if config.SampleRate <= 0 || config.SampleRate > 1 {
		config.SampleRate = defaults.SampleRate
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = defaults.BatchTimeout
	}
	if config.MaxExportBatch <= 0 {
		config.MaxExportBatch = defaults.MaxExportBatch
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = defaults.MaxQueueSize
	}
}

// normalizeOTLPEndpoint splits a collector URL into the host:port and the
// traces path expected by otlptracehttp.
func normalizeOTLPEndpoint(endpoint string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", "", false, "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", false, "", fmt.Errorf("endpoint %q must be an http(s) URL", endpoint)
	}

	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, "/v1/traces") {
		path += "/v1/traces"
	}
	insecure = u.Scheme == "http"
	resolved = fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
	return u.Host, path, insecure, resolved, nil
}

// GetTracer returns a named tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func GetCacheTracer() trace.Tracer {
	return GetTracer(ServiceName + "/cache")
}

func GetReportTracer() trace.Tracer {
	return GetTracer(ServiceName + "/report")
}

func GetIngestTracer() trace.Tracer {
	return GetTracer(ServiceName + "/ingest")
}

// StartSpan starts a span on the given tracer.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordError records err on the span and marks it failed. A nil error is
// ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanStatus(span trace.Span, code codes.Code, description string) {
	span.SetStatus(code, description)
}

func StringAttribute(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func StringSliceAttribute(key string, value []string) attribute.KeyValue {
	return attribute.StringSlice(key, value)
}

func Int64Attribute(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

func Float64Attribute(key string, value float64) attribute.KeyValue {
	return attribute.Float64(key, value)
}

func BoolAttribute(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}
