package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig bounds request throughput. The global bucket covers every
// route; the dispatch limit throttles POSTed actions per client IP so a
// misbehaving console cannot flood the reducer.
type RateLimitConfig struct {
	GlobalRPS      float64
	GlobalBurst    int
	DispatchLimit  int
	DispatchWindow time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisTimeout   time.Duration
}

type rateLimiter struct {
	global          *tokenBucket
	dispatchLimit   int
	dispatchWindow  time.Duration
	dispatchMu      sync.Mutex
	dispatchBuckets map[string]*ipLimiter
	store           tokenStore
}

type ipLimiter struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

type tokenStore interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration, error)
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		dispatchLimit:   cfg.DispatchLimit,
		dispatchWindow:  cfg.DispatchWindow,
		dispatchBuckets: make(map[string]*ipLimiter),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = newTokenBucket(cfg.GlobalRPS, burst)
	}
	if rl.dispatchLimit <= 0 {
		rl.dispatchLimit = 0
	}
	if rl.dispatchWindow <= 0 {
		rl.dispatchWindow = time.Minute
	}
	if cfg.RedisAddr != "" && rl.dispatchLimit > 0 {
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = newRedisStore(cfg.RedisAddr, cfg.RedisPassword, timeout)
	}
	return rl
}

func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

func (r *rateLimiter) AllowDispatch(key string) (bool, time.Duration, error) {
	if r == nil || r.dispatchLimit <= 0 {
		return true, 0, nil
	}
	if r.store != nil {
		allowed, retryAfter, err := r.store.Allow(fmt.Sprintf("stagecast:dispatch:%s", key), r.dispatchLimit, r.dispatchWindow)
		return allowed, retryAfter, err
	}
	if key == "" {
		key = "unknown"
	}
	r.dispatchMu.Lock()
	bucket, exists := r.dispatchBuckets[key]
	if !exists {
		rate := float64(r.dispatchLimit) / r.dispatchWindow.Seconds()
		if rate <= 0 {
			rate = 1 / r.dispatchWindow.Seconds()
		}
		bucket = &ipLimiter{bucket: newTokenBucket(rate, r.dispatchLimit)}
		r.dispatchBuckets[key] = bucket
	}
	bucket.lastSeen = time.Now()
	r.cleanupLocked()
	r.dispatchMu.Unlock()

	if bucket.bucket.Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

func (r *rateLimiter) cleanupLocked() {
	if len(r.dispatchBuckets) == 0 {
		return
	}
	cutoff := time.Now().Add(-2 * r.dispatchWindow)
	for key, bucket := range r.dispatchBuckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(r.dispatchBuckets, key)
		}
	}
}

type tokenBucket struct {
	mu        sync.Mutex
	rate      float64
	capacity  float64
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	now := time.Now()
	return &tokenBucket{
		rate:      rate,
		capacity:  float64(burst),
		tokens:    float64(burst),
		lastCheck: now,
	}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens -= 1
	return true
}
