package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a key exceeds its rate limit.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// idleTTL is how long an untouched key keeps its limiter.
const idleTTL = 10 * time.Minute

// RateLimitConfig holds configurable rate limits.
type RateLimitConfig struct {
	// PerMinute is the sustained number of events allowed per key. Zero or
	// negative disables limiting.
	PerMinute int `yaml:"per_minute"`

	// Burst is the number of events allowed at once. Defaults to PerMinute.
	Burst int `yaml:"burst"`
}

// RateLimiter applies an independent token bucket to each key (typically a
// client address). Keys idle for longer than ten minutes are forgotten.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	disabled  bool
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(cfg.PerMinute, 1)
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(cfg.PerMinute) / 60),
		burst:    burst,
		disabled: cfg.PerMinute <= 0,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow records one event for key. Returns nil if allowed, ErrRateLimited
// if the key is over its limit.
func (rl *RateLimiter) Allow(key string) error {
	if rl == nil || rl.disabled {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.seen = now

	if !v.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Len returns the number of keys currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// sweep drops idle keys at most once per idleTTL. Caller holds rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleTTL {
		return
	}
	rl.lastSweep = now
	for key, v := range rl.visitors {
		if now.Sub(v.seen) >= idleTTL {
			delete(rl.visitors, key)
		}
	}
}
