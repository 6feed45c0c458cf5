package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter applies a process-wide token bucket to API requests.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limiter.Allow() {
			c.Next()
			return
		}

		rl.logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		)

		retryAfter := 1
		if l := rl.limiter.Limit(); l > 0 && l < 1 {
			retryAfter = int(1/float64(l)) + 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
			"kind":  "rate_limited",
		})
	}
}
