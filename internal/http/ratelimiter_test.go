package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSlidingWindowLimiter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(time.Minute, 2, func() time.Time { return now })

	if !limiter.Allow() || !limiter.Allow() {
		t.Fatal("expected first two calls to be allowed")
	}
	if limiter.Allow() {
		t.Fatal("expected third call to be denied")
	}

	now = now.Add(30 * time.Second)
	if limiter.Allow() {
		t.Fatal("expected call within window to still be denied")
	}
	if got := limiter.RetryAfter(); got != 30*time.Second {
		t.Fatalf("expected 30s until a slot frees, got %v", got)
	}

	now = now.Add(31 * time.Second)
	if !limiter.Allow() {
		t.Fatal("expected limiter to permit call after window passes")
	}
}

func TestSlidingWindowLimiterDisabled(t *testing.T) {
	limiter := NewSlidingWindowLimiter(0, 0, nil)
	if !limiter.Allow() || limiter.RetryAfter() != 0 {
		t.Fatal("limiter with zero configuration should allow")
	}
}

func TestSimulateHandlerSetsRetryAfter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(10*time.Second, 1, func() time.Time { return now })
	limiter.Allow()
	handlers := newHandlers(Options{RateLimiter: limiter})
	rr := httptest.NewRecorder()
	handlers.SimulateHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/simulate", strings.NewReader(catalogBody)))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "10" {
		t.Fatalf("expected Retry-After 10, got %q", got)
	}
}
