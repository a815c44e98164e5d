package policy

import (
	"sync"
	"time"
)

// RateLimitConfig configures the token bucket limiter. Any non-positive field
// disables limiting.
type RateLimitConfig struct {
	Capacity     int
	RefillTokens int
	RefillEvery  time.Duration
}

func (c RateLimitConfig) enabled() bool {
	return c.Capacity > 0 && c.RefillTokens > 0 && c.RefillEvery > 0
}

// TokenBucket implements a basic token bucket rate limiter. A nil bucket
// allows everything.
type TokenBucket struct {
	capacity     int
	tokens       float64
	refillAmount float64
	refillEvery  time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket returns a full bucket as of now, or nil when cfg disables
// limiting.
func NewTokenBucket(cfg RateLimitConfig, now time.Time) *TokenBucket {
	if !cfg.enabled() {
		return nil
	}
	return &TokenBucket{
		capacity:     cfg.Capacity,
		tokens:       float64(cfg.Capacity),
		refillAmount: float64(cfg.RefillTokens),
		refillEvery:  cfg.RefillEvery,
		lastRefill:   now,
	}
}

// Allow consumes a single token if available and returns true. When no tokens
// are available the call returns false.
func (b *TokenBucket) Allow(now time.Time) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Available returns the whole tokens left at now.
func (b *TokenBucket) Available(now time.Time) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	return int(b.tokens)
}

func (b *TokenBucket) refill(now time.Time) {
	// clock went backwards
	if now.Before(b.lastRefill) {
		b.lastRefill = now
		return
	}

	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillEvery {
		return
	}

	units := float64(elapsed / b.refillEvery)
	b.tokens += units * b.refillAmount
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(units) * b.refillEvery)
}
