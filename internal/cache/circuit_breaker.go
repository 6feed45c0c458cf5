package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/irfndi/finmetrics-go/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when the breaker trips and recovers.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // half-open successes that close it again
	OpenTimeout      time.Duration // how long to stay open before a trial call
	MaxTrialCalls    int           // concurrent calls allowed while half-open
}

// DefaultBreakerConfig suits a single Redis dependency.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		MaxTrialCalls:    1,
	}
}

// BreakerStats counts breaker outcomes.
type BreakerStats struct {
	Requests     int64 `json:"requests"`
	Successes    int64 `json:"successes"`
	Failures     int64 `json:"failures"`
	Rejected     int64 `json:"rejected"`
	StateChanges int64 `json:"state_changes"`
}

// CircuitBreaker stops calling a failing dependency for a while. The lock is
// never held while the guarded call runs.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	trials    int
	openedAt  time.Time
	stats     BreakerStats
}

// NewCircuitBreaker creates a closed breaker. Zero config fields take the
// defaults.
func NewCircuitBreaker(name string, config BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	if config.MaxTrialCalls <= 0 {
		config.MaxTrialCalls = def.MaxTrialCalls
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.done(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Requests++
	if cb.state == Open {
		if cb.now().Sub(cb.openedAt) < cb.config.OpenTimeout {
			cb.stats.Rejected++
			return ErrCircuitOpen
		}
		cb.setState(HalfOpen)
	}
	if cb.state == HalfOpen {
		if cb.trials >= cb.config.MaxTrialCalls {
			cb.stats.Rejected++
			return ErrCircuitOpen
		}
		cb.trials++
	}
	return nil
}

func (cb *CircuitBreaker) done(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == HalfOpen && cb.trials > 0 {
		cb.trials--
	}

	// Cancellation says nothing about the dependency's health.
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return
	}

	if err == nil {
		cb.stats.Successes++
		switch cb.state {
		case HalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.setState(Closed)
			}
		case Closed:
			cb.failures = 0
		}
		return
	}

	cb.stats.Failures++
	switch cb.state {
	case HalfOpen:
		cb.setState(Open)
	case Closed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
	}
	cb.logger.WithError(err).WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"failures":        cb.failures,
		"state":           cb.state.String(),
	}).Warn("Circuit breaker: call failed")
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(next BreakerState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.failures = 0
	cb.successes = 0
	cb.trials = 0
	if next == Open {
		cb.openedAt = cb.now()
	}
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       prev.String(),
		"new_state":       next.String(),
	}).Info("Circuit breaker state changed")
}

// State returns the current state. An open breaker whose timeout has passed
// still reports Open until the next call tries it.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the counters.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// MappingStore is the backing store guarded by GuardedMappingCache.
type MappingStore interface {
	Lookup(ctx context.Context, headers []string) (models.FieldMapping, models.IndustryTag, bool, error)
	Set(ctx context.Context, headers []string, mapping models.FieldMapping, industry models.IndustryTag) error
}

// GuardedMappingCache skips the store while its circuit is open.
type GuardedMappingCache struct {
	store   MappingStore
	breaker *CircuitBreaker
}

// NewGuardedMappingCache wraps store with breaker.
func NewGuardedMappingCache(store MappingStore, breaker *CircuitBreaker) *GuardedMappingCache {
	return &GuardedMappingCache{store: store, breaker: breaker}
}

// Get returns a cached mapping. An open circuit is a miss.
func (g *GuardedMappingCache) Get(ctx context.Context, headers []string) (models.FieldMapping, models.IndustryTag, bool) {
	var (
		mapping  models.FieldMapping
		industry models.IndustryTag
		found    bool
	)
	_ = g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		mapping, industry, found, err = g.store.Lookup(ctx, headers)
		return err
	})
	return mapping, industry, found
}

// Set stores a mapping unless the circuit is open.
func (g *GuardedMappingCache) Set(ctx context.Context, headers []string, mapping models.FieldMapping, industry models.IndustryTag) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.store.Set(ctx, headers, mapping, industry)
	})
}
