package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger interface defines the common logging methods shared by the stdout
// and OTLP backed loggers.
type Logger interface {
	WithComponent(componentName string) *slog.Logger
	WithRequestID(requestID string) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogCacheOperation(operation string, key string, hit bool, duration int64)
	LogAPIRequest(method string, path string, statusCode int, duration int64, requestID string)
	LogBusinessEvent(eventType string, details map[string]interface{})
	Logger() *slog.Logger
}

// StandardLogger provides a standardized logging interface
type StandardLogger struct {
	logger Logger
}

// NewStandardLogger creates a JSON stdout logger at the given level.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	})
	logger := slog.New(handler).With("environment", environment)
	return &StandardLogger{logger: &slogLogger{logger: logger}}
}

// NewStandardLoggerFromSlog wraps an existing slog logger.
func NewStandardLoggerFromSlog(logger *slog.Logger) *StandardLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandardLogger{logger: &slogLogger{logger: logger}}
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.WithComponent(componentName)
}

func (l *StandardLogger) WithRequestID(requestID string) *slog.Logger {
	return l.logger.WithRequestID(requestID)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	return l.logger.WithError(err)
}

func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.LogStartup(serviceName, version, port)
}

func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.LogShutdown(serviceName, reason)
}

func (l *StandardLogger) LogCacheOperation(operation string, key string, hit bool, duration int64) {
	l.logger.LogCacheOperation(operation, key, hit, duration)
}

func (l *StandardLogger) LogAPIRequest(method string, path string, statusCode int, duration int64, requestID string) {
	l.logger.LogAPIRequest(method, path, statusCode, duration, requestID)
}

func (l *StandardLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	l.logger.LogBusinessEvent(eventType, details)
}

// Logger returns the underlying slog.Logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger.Logger()
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogrusLogger builds the logrus instance handed to services. Production
// uses JSON output; other environments use text.
func NewLogrusLogger(level string, environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(ParseLogrusLevel(level))
	if strings.EqualFold(environment, "production") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewDiscardLogrusLogger returns a logrus logger that writes nowhere.
func NewDiscardLogrusLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// slogLogger implements Logger on top of a slog.Logger.
type slogLogger struct {
	logger *slog.Logger
}

func (s *slogLogger) WithComponent(componentName string) *slog.Logger {
	return s.logger.With("component", componentName)
}

func (s *slogLogger) WithRequestID(requestID string) *slog.Logger {
	return s.logger.With("request_id", requestID)
}

func (s *slogLogger) WithError(err error) *slog.Logger {
	if err == nil {
		return s.logger
	}
	return s.logger.With("error", err.Error())
}

func (s *slogLogger) LogStartup(serviceName string, version string, port int) {
	s.logger.Info("Service starting",
		"event", "startup",
		"service", serviceName,
		"version", version,
		"port", port,
	)
}

func (s *slogLogger) LogShutdown(serviceName string, reason string) {
	s.logger.Info("Service shutting down",
		"event", "shutdown",
		"service", serviceName,
		"reason", reason,
	)
}

func (s *slogLogger) LogCacheOperation(operation string, key string, hit bool, duration int64) {
	s.logger.Debug("Cache operation",
		"event", "cache_operation",
		"operation", operation,
		"key", key,
		"hit", hit,
		"duration_ms", duration,
	)
}

func (s *slogLogger) LogAPIRequest(method string, path string, statusCode int, duration int64, requestID string) {
	s.logger.Info("API request",
		"event", "api_request",
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration_ms", duration,
		"request_id", requestID,
	)
}

func (s *slogLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	fields := []interface{}{
		"event", "business_event",
		"type", eventType,
	}
	for k, v := range details {
		fields = append(fields, k, v)
	}
	s.logger.Info("Business event", fields...)
}

func (s *slogLogger) Logger() *slog.Logger {
	return s.logger
}
