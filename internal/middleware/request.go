package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/finmetrics-go/internal/logging"
)

// RequestIDHeader carries the request ID in and out of the service.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestRecorder receives per-request HTTP metrics.
type RequestRecorder interface {
	RecordAPIRequestMetrics(method, endpoint string, statusCode int, duration time.Duration)
}

// RequestID reuses an incoming X-Request-ID or generates a UUID, and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		AddSpanAttribute(c, "http.request_id", requestID)
		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs every request once it completes and feeds the request
// metrics. recorder may be nil.
func RequestLogger(logger *logging.StandardLogger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if logger != nil {
			logger.LogAPIRequest(c.Request.Method, route, status, duration.Milliseconds(), GetRequestID(c))
			if len(c.Errors) > 0 {
				logger.WithRequestID(GetRequestID(c)).Warn("Request completed with errors",
					"errors", c.Errors.String(),
					"outcome", statusClass(status),
				)
			}
		}
		if recorder != nil {
			recorder.RecordAPIRequestMetrics(c.Request.Method, route, status, duration)
		}
	}
}
