package testutil

import (
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// GetTestRedisOptions returns options for an external test Redis. The
// address comes from REDIS_TEST_ADDR and falls back to localhost:6379; DB 1
// keeps tests away from application data.
func GetTestRedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{
		Addr: addr,
		DB:   1,
	}
}

// GetTestRedisClient returns a client for GetTestRedisOptions. It does not
// connect until first use.
func GetTestRedisClient() *redis.Client {
	return redis.NewClient(GetTestRedisOptions())
}

// SetupMiniRedis starts an in-process Redis and a client bound to it. Both
// are closed when the test ends.
func SetupMiniRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, server
}
