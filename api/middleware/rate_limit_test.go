package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type countingStore struct {
	counts map[string]int64
	err    error
}

func (c *countingStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func TestRateLimitBlocksPerUser(t *testing.T) {
	store := &countingStore{counts: map[string]int64{}}
	mw := RateLimit(RateLimitPolicy{Name: "reserve", Limit: 2, Window: time.Minute}, store, nil)(okHandler())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), user, "member", ""))
		resp := httptest.NewRecorder()
		mw.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := send("u1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send("u1"); code != http.StatusOK {
		t.Fatalf("second request: %d", code)
	}
	if code := send("u1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if code := send("u2"); code != http.StatusOK {
		t.Fatalf("other user should not be limited, got %d", code)
	}
	if _, ok := store.counts["reserve:u1"]; !ok {
		t.Fatalf("expected scope keyed by policy and user, got %v", store.counts)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	store := &countingStore{err: errors.New("redis down")}
	mw := RateLimit(RateLimitPolicy{Name: "activate", Limit: 1, Window: time.Minute}, store, nil)(okHandler())

	resp := httptest.NewRecorder()
	mw.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pass-through on store error, got %d", resp.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if ip := clientIP(req); ip != "10.0.0.1" {
		t.Fatalf("unexpected ip %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "85.1.2.3, 10.0.0.1")
	if ip := clientIP(req); ip != "85.1.2.3" {
		t.Fatalf("unexpected forwarded ip %q", ip)
	}
}
