package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

// setupTestLogger creates a text logger writing into a buffer.
func setupTestLogger(level string) (*StandardLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: getSlogLevel(level),
	})
	return NewStandardLoggerFromSlog(slog.New(handler)), &buf
}

func TestNewStandardLogger_Basic(t *testing.T) {
	logger := NewStandardLogger("info", "development")

	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())
}

func TestGetSlogLevel(t *testing.T) {
	tests := []struct {
		levelStr string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			assert.Equal(t, tt.expected, getSlogLevel(tt.levelStr))
		})
	}
}

func TestStandardLogger_ContextHelpers(t *testing.T) {
	tests := []struct {
		name     string
		log      func(l *StandardLogger) *slog.Logger
		expected string
	}{
		{"component", func(l *StandardLogger) *slog.Logger { return l.WithComponent("schema_mapper") }, "component=schema_mapper"},
		{"request id", func(l *StandardLogger) *slog.Logger { return l.WithRequestID("req-1") }, "request_id=req-1"},
		{"error", func(l *StandardLogger) *slog.Logger { return l.WithError(errors.New("boom")) }, "error=boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := setupTestLogger("info")
			tt.log(logger).Info("test message")
			assert.Contains(t, buf.String(), tt.expected)
			assert.Contains(t, buf.String(), "test message")
		})
	}
}

func TestStandardLogger_WithNilError(t *testing.T) {
	logger, buf := setupTestLogger("info")
	logger.WithError(nil).Info("no error")
	assert.NotContains(t, buf.String(), "error=")
}

func TestStandardLogger_Events(t *testing.T) {
	t.Run("startup", func(t *testing.T) {
		logger, buf := setupTestLogger("info")
		logger.LogStartup("finmetrics", "1.0.0", 8080)
		out := buf.String()
		assert.Contains(t, out, "Service starting")
		assert.Contains(t, out, "event=startup")
		assert.Contains(t, out, "port=8080")
	})

	t.Run("shutdown", func(t *testing.T) {
		logger, buf := setupTestLogger("info")
		logger.LogShutdown("finmetrics", "signal")
		assert.Contains(t, buf.String(), "reason=signal")
	})

	t.Run("cache operation is debug", func(t *testing.T) {
		logger, buf := setupTestLogger("info")
		logger.LogCacheOperation("get", "field_mapping:abc", true, 2)
		assert.Empty(t, buf.String())

		logger, buf = setupTestLogger("debug")
		logger.LogCacheOperation("get", "field_mapping:abc", true, 2)
		assert.Contains(t, buf.String(), "hit=true")
	})

	t.Run("api request", func(t *testing.T) {
		logger, buf := setupTestLogger("info")
		logger.LogAPIRequest("POST", "/api/v1/reports", 200, 15, "req-1")
		out := buf.String()
		assert.Contains(t, out, "status_code=200")
		assert.Contains(t, out, "request_id=req-1")
	})

	t.Run("business event", func(t *testing.T) {
		logger, buf := setupTestLogger("info")
		logger.LogBusinessEvent("report_generated", map[string]interface{}{"industry": "retail"})
		out := buf.String()
		assert.Contains(t, out, "type=report_generated")
		assert.Contains(t, out, "industry=retail")
	})
}

func TestParseLogrusLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogrusLevel(tt.input))
		})
	}
}

func TestNewLogrusLogger(t *testing.T) {
	prod := NewLogrusLogger("debug", "production")
	assert.Equal(t, logrus.DebugLevel, prod.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, prod.Formatter)

	dev := NewLogrusLogger("warn", "development")
	assert.Equal(t, logrus.WarnLevel, dev.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, dev.Formatter)

	assert.NotNil(t, NewDiscardLogrusLogger())
}

func TestNewOTLPLogger_Disabled(t *testing.T) {
	logger, err := NewOTLPLogger(OTLPConfig{Enabled: false, ServiceName: "test-service"})
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger())
	assert.NoError(t, logger.Shutdown(context.Background()))
}

func TestNewOTLPLogger_Enabled(t *testing.T) {
	logger, err := NewOTLPLogger(OTLPConfig{
		Enabled:        true,
		Endpoint:       "localhost:4318",
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		LogLevel:       "info",
	})
	if err != nil {
		assert.ErrorContains(t, err, "failed to create OTLP log exporter")
		return
	}
	assert.NotNil(t, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = logger.Shutdown(ctx)
}

// recordingOTLPLogger captures emitted records.
type recordingOTLPLogger struct {
	otellog.Logger
	records []otellog.Record
}

func (m *recordingOTLPLogger) Enabled(context.Context, otellog.EnabledParameters) bool {
	return true
}

func (m *recordingOTLPLogger) Emit(_ context.Context, record otellog.Record) {
	m.records = append(m.records, record)
}

func recordAttrs(rec otellog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestOTLPHandler_Enabled(t *testing.T) {
	handler := NewOTLPHandler(&recordingOTLPLogger{}, slog.LevelInfo)
	ctx := context.Background()

	assert.False(t, handler.Enabled(ctx, slog.LevelDebug))
	assert.True(t, handler.Enabled(ctx, slog.LevelInfo))
	assert.True(t, handler.Enabled(ctx, slog.LevelError))
}

func TestOTLPHandler_Handle(t *testing.T) {
	mock := &recordingOTLPLogger{}
	logger := slog.New(NewOTLPHandler(mock, slog.LevelDebug)).
		With("component", "report").
		WithGroup("report")

	logger.Warn("report generated", "records", 12, "ok", true, "ratio", 0.5)

	require.Len(t, mock.records, 1)
	rec := mock.records[0]
	assert.Equal(t, "report generated", rec.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, rec.Severity())

	attrs := recordAttrs(rec)
	assert.Equal(t, "report", attrs["component"].AsString())
	assert.Equal(t, int64(12), attrs["report.records"].AsInt64())
	assert.True(t, attrs["report.ok"].AsBool())
	assert.InDelta(t, 0.5, attrs["report.ratio"].AsFloat64(), 1e-12)
}

func TestConvertSlogLevelToSeverity(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected otellog.Severity
	}{
		{slog.LevelDebug, otellog.SeverityDebug},
		{slog.LevelInfo, otellog.SeverityInfo},
		{slog.LevelWarn, otellog.SeverityWarn},
		{slog.LevelError, otellog.SeverityError},
		{slog.LevelError + 4, otellog.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, convertSlogLevelToSeverity(tt.level))
		})
	}
}
