// Package ratelimit provides the token-bucket limiting used for the
// classifier-oracle call rate (C3), plus a ConcurrencyGate for capping
// in-flight operations, grounded on infrastructure/ratelimit/ratelimit.go.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a RateLimiter.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns sane limiter defaults.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 100, Burst: 200}
}

// RateLimiter wraps x/time/rate with a reset hook used by tests.
type RateLimiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	config  Config
}

// New creates a RateLimiter from cfg.
func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config:  cfg,
	}
}

// Allow reports whether a request may proceed right now.
func (r *RateLimiter) Allow() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.RLock()
	l := r.limiter
	r.mu.RUnlock()
	return l.Wait(ctx)
}

// Reset replaces the underlying limiter with a fresh one at the same config.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
}

// ConcurrencyGate bounds the number of in-flight operations, used to enforce
// a WorkerInstance's maxConcurrency as a hard cap (spec §5 backpressure).
type ConcurrencyGate struct {
	sem chan struct{}
}

// NewConcurrencyGate creates a gate that allows at most max concurrent holders.
func NewConcurrencyGate(max int) *ConcurrencyGate {
	if max <= 0 {
		max = 1
	}
	return &ConcurrencyGate{sem: make(chan struct{}, max)}
}

// TryAcquire attempts to acquire a slot without blocking.
func (g *ConcurrencyGate) TryAcquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously acquired slot.
func (g *ConcurrencyGate) Release() {
	select {
	case <-g.sem:
	default:
	}
}

// InUse reports the number of currently held slots.
func (g *ConcurrencyGate) InUse() int {
	return len(g.sem)
}

var _ = time.Second // keep time import if future fields need it
