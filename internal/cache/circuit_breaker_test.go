package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/irfndi/finmetrics-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", cfg, quietLogger())
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("redis", BreakerConfig{}, nil)

	assert.Equal(t, DefaultBreakerConfig(), cb.config)
	assert.Equal(t, Closed, cb.State())
	assert.Zero(t, cb.Stats())
}

func TestBreakerState_String(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{BreakerState(9), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, Closed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, Open, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	stats := cb.Stats()
	assert.Equal(t, int64(4), stats.Requests)
	assert.Equal(t, int64(3), stats.Failures)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.StateChanges)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name  string
		calls []func(context.Context) error
		want  BreakerState
	}{
		{"recovers after successes", []func(context.Context) error{succeed, succeed}, Closed},
		{"one success stays half-open", []func(context.Context) error{succeed}, HalfOpen},
		{"failure reopens", []func(context.Context) error{fail}, Open},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Minute})
			ctx := context.Background()

			_ = cb.Execute(ctx, fail)
			require.Equal(t, Open, cb.State())
			clock.Advance(time.Minute)

			for _, fn := range tt.calls {
				_ = cb.Execute(ctx, fn)
			}
			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsTrialCalls(t *testing.T) {
	cb, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second, MaxTrialCalls: 1})
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
	close(release)
	assert.NoError(t, <-done)
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})

	err := cb.Execute(context.Background(), func(context.Context) error {
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Closed, cb.State())
}

func TestGuardedMappingCache(t *testing.T) {
	client, server := testutil.SetupMiniRedis(t)
	store := NewRedisMappingCache(client, time.Hour, "v1", quietLogger())
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute})
	guarded := NewGuardedMappingCache(store, cb)
	ctx := context.Background()
	headers := []string{"Month", "Sales"}

	require.NoError(t, guarded.Set(ctx, headers, sampleMapping(), models.IndustryRetail))
	_, industry, found := guarded.Get(ctx, headers)
	require.True(t, found)
	assert.Equal(t, models.IndustryRetail, industry)

	server.Close()
	for i := 0; i < 2; i++ {
		_, _, found = guarded.Get(ctx, headers)
		assert.False(t, found)
	}
	assert.Equal(t, Open, cb.State())
	errorsBefore := store.GetStats().Errors

	_, _, found = guarded.Get(ctx, headers)
	assert.False(t, found)
	assert.ErrorIs(t, guarded.Set(ctx, headers, sampleMapping(), models.IndustryRetail), ErrCircuitOpen)
	assert.Equal(t, errorsBefore, store.GetStats().Errors)
}

func TestGuardedMappingCache_CorruptEntryIsNotAFailure(t *testing.T) {
	client, server := testutil.SetupMiniRedis(t)
	store := NewRedisMappingCache(client, time.Hour, "v1", quietLogger())
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	guarded := NewGuardedMappingCache(store, cb)
	headers := []string{"Revenue"}

	require.NoError(t, server.Set(store.Key(headers), "{not json"))
	_, _, found := guarded.Get(context.Background(), headers)
	assert.False(t, found)
	assert.Equal(t, Closed, cb.State())
}
