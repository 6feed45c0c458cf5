package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const mappingKeyPrefix = "field_mapping:"

// MappingCacheEntry is a cached schema resolution for one header set.
type MappingCacheEntry struct {
	Headers   []string                `json:"headers"`
	Mapping   models.FieldMappingView `json:"mapping"`
	Industry  models.IndustryTag      `json:"industry"`
	CachedAt  time.Time               `json:"cached_at"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// MappingCacheStats tracks cache performance metrics
type MappingCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// HitRate returns hits as a percentage of lookups.
func (s MappingCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// RedisMappingCache stores field mappings in Redis keyed by a hash of the
// dataset headers. Entries are only reused for an identical header set.
type RedisMappingCache struct {
	redis     *redis.Client
	ttl       time.Duration
	namespace string
	logger    *logrus.Logger
	tracer    trace.Tracer

	mu    sync.RWMutex
	stats MappingCacheStats
}

// NewRedisMappingCache creates a mapping cache. namespace separates entries
// produced under different mapper settings.
func NewRedisMappingCache(redisClient *redis.Client, ttl time.Duration, namespace string, logger *logrus.Logger) *RedisMappingCache {
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMappingCache{
		redis:     redisClient,
		ttl:       ttl,
		namespace: namespace,
		logger:    logger,
		tracer:    telemetry.GetCacheTracer(),
	}
}

// Key returns the Redis key for a header set. Headers are hashed exactly as
// given and in order, since the mapping refers to raw column names and ties
// resolve to the first matching column.
func (c *RedisMappingCache) Key(headers []string) string {
	h := sha256.New()
	h.Write([]byte(c.namespace))
	for _, s := range headers {
		h.Write([]byte{0x1f})
		h.Write([]byte(s))
	}
	return mappingKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached mapping for the headers. Redis failures count as a
// miss.
func (c *RedisMappingCache) Get(ctx context.Context, headers []string) (models.FieldMapping, models.IndustryTag, bool) {
	mapping, industry, found, _ := c.Lookup(ctx, headers)
	return mapping, industry, found
}

// Lookup is Get with the Redis error exposed. A missing or unreadable entry
// is a miss with a nil error.
func (c *RedisMappingCache) Lookup(ctx context.Context, headers []string) (models.FieldMapping, models.IndustryTag, bool, error) {
	key := c.Key(headers)
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.mapping.get",
		telemetry.Int64Attribute("cache.headers", int64(len(headers))))
	defer span.End()

	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(func(s *MappingCacheStats) { s.Misses++ })
		telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("cache.hit", false))
		return models.FieldMapping{}, "", false, nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error reading field mapping")
		c.record(func(s *MappingCacheStats) { s.Misses++; s.Errors++ })
		telemetry.RecordError(span, err)
		return models.FieldMapping{}, "", false, fmt.Errorf("read field mapping: %w", err)
	}

	var entry MappingCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding unreadable field mapping entry")
		c.record(func(s *MappingCacheStats) { s.Misses++; s.Errors++ })
		_ = c.redis.Del(ctx, key).Err()
		return models.FieldMapping{}, "", false, nil
	}

	c.record(func(s *MappingCacheStats) { s.Hits++ })
	telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("cache.hit", true))
	c.logger.WithFields(logrus.Fields{
		"key":      key,
		"industry": entry.Industry,
		"fields":   len(entry.Mapping.Fields),
	}).Debug("Field mapping cache hit")
	return models.MappingFromView(entry.Mapping), entry.Industry, true, nil
}

// Set stores a mapping for the headers with the configured TTL.
func (c *RedisMappingCache) Set(ctx context.Context, headers []string, mapping models.FieldMapping, industry models.IndustryTag) error {
	key := c.Key(headers)
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.mapping.set",
		telemetry.Int64Attribute("cache.headers", int64(len(headers))))
	defer span.End()
	now := time.Now()
	entry := MappingCacheEntry{
		Headers:   headers,
		Mapping:   mapping.View(),
		Industry:  industry,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize field mapping: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.record(func(s *MappingCacheStats) { s.Errors++ })
		telemetry.RecordError(span, err)
		return fmt.Errorf("store field mapping: %w", err)
	}

	c.record(func(s *MappingCacheStats) { s.Sets++ })
	c.logger.WithFields(logrus.Fields{
		"key": key,
		"ttl": c.ttl,
	}).Debug("Cached field mapping")
	return nil
}

// GetStats returns current cache statistics
func (c *RedisMappingCache) GetStats() MappingCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LogStats logs current cache performance statistics
func (c *RedisMappingCache) LogStats() {
	stats := c.GetStats()
	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"errors":   stats.Errors,
		"hit_rate": fmt.Sprintf("%.2f%%", stats.HitRate()),
	}).Info("Field mapping cache stats")
}

func (c *RedisMappingCache) record(update func(*MappingCacheStats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}
