package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/finmetrics-go/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisClient struct {
	Client *redis.Client
	logger *logrus.Logger
}

func NewRedisConnection(cfg config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	}).Info("Successfully connected to Redis")

	return NewRedisClientFromClient(rdb, logger), nil
}

// NewRedisClientFromClient wraps an existing client without pinging it.
func NewRedisClientFromClient(client *redis.Client, logger *logrus.Logger) *RedisClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisClient{Client: client, logger: logger}
}

func (r *RedisClient) Close() {
	if r.Client != nil {
		_ = r.Client.Close()
		if r.logger != nil {
			r.logger.Info("Redis connection closed")
		}
	}
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return fmt.Errorf("redis client is not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// PoolStats reports connection pool usage for the health endpoint.
func (r *RedisClient) PoolStats() map[string]uint32 {
	if r == nil || r.Client == nil {
		return nil
	}
	s := r.Client.PoolStats()
	return map[string]uint32{
		"hits":        s.Hits,
		"misses":      s.Misses,
		"timeouts":    s.Timeouts,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
	}
}
