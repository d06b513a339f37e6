package server

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustsAndRefills(t *testing.T) {
	t.Parallel()

	bucket := newTokenBucket(100, 2)
	if !bucket.Allow() || !bucket.Allow() {
		t.Fatal("expected burst capacity to be available")
	}
	if bucket.Allow() {
		t.Fatal("expected bucket to be exhausted")
	}

	time.Sleep(30 * time.Millisecond)
	if !bucket.Allow() {
		t.Fatal("expected bucket to refill over time")
	}
}

func TestAllowDispatchDisabledByDefault(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 50; i++ {
		allowed, _, err := rl.AllowDispatch("10.0.0.1")
		if err != nil {
			t.Fatalf("AllowDispatch error: %v", err)
		}
		if !allowed {
			t.Fatalf("dispatch %d: expected unlimited dispatches when no limit is set", i)
		}
	}
}

func TestAllowDispatchIsolatesClients(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(RateLimitConfig{DispatchLimit: 2, DispatchWindow: time.Minute})

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.AllowDispatch("10.0.0.1")
		if err != nil {
			t.Fatalf("AllowDispatch error: %v", err)
		}
		if !allowed {
			t.Fatalf("dispatch %d: expected first client to be allowed", i)
		}
	}

	allowed, retryAfter, err := rl.AllowDispatch("10.0.0.1")
	if err != nil {
		t.Fatalf("AllowDispatch error: %v", err)
	}
	if allowed {
		t.Fatal("expected first client to be throttled")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", retryAfter)
	}

	allowed, _, err = rl.AllowDispatch("10.0.0.2")
	if err != nil {
		t.Fatalf("AllowDispatch error: %v", err)
	}
	if !allowed {
		t.Fatal("expected second client to be unaffected")
	}
}

func TestAllowDispatchMapsEmptyKey(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(RateLimitConfig{DispatchLimit: 1, DispatchWindow: time.Minute})

	if allowed, _, _ := rl.AllowDispatch(""); !allowed {
		t.Fatal("expected first anonymous dispatch to pass")
	}
	if allowed, _, _ := rl.AllowDispatch(""); allowed {
		t.Fatal("expected anonymous dispatches to share one bucket")
	}
}

func TestAllowRequestWithoutGlobalLimit(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 10; i++ {
		if !rl.AllowRequest() {
			t.Fatal("expected requests to pass with no global limit")
		}
	}
}

func TestAllowRequestEnforcesGlobalBurst(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(RateLimitConfig{GlobalRPS: 0.001, GlobalBurst: 3})
	for i := 0; i < 3; i++ {
		if !rl.AllowRequest() {
			t.Fatalf("request %d: expected burst capacity", i)
		}
	}
	if rl.AllowRequest() {
		t.Fatal("expected global limit to throttle after burst")
	}
}
