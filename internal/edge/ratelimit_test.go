package edge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	l := NewLimiter(store, map[string]Limit{"auth": {Requests: 5, Window: 15 * time.Minute}})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		v, err := l.Allow(ctx, "auth", "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !v.Allowed {
			t.Fatalf("request %d must be allowed", i)
		}
		if v.Remaining != 5-i {
			t.Fatalf("request %d: remaining = %d", i, v.Remaining)
		}
	}

	v, _ := l.Allow(ctx, "auth", "1.2.3.4")
	if v.Allowed || v.Remaining != 0 {
		t.Fatalf("6th request: verdict = %+v", v)
	}

	// другой клиент не делит бакет
	if v, _ := l.Allow(ctx, "auth", "5.6.7.8"); !v.Allowed {
		t.Fatal("another client must have its own bucket")
	}

	// после окна счётчик обнуляется
	now = now.Add(16 * time.Minute)
	if v, _ := l.Allow(ctx, "auth", "1.2.3.4"); !v.Allowed || v.Remaining != 4 {
		t.Fatalf("after window: verdict = %+v", v)
	}
}

func TestLimiterUnknownCategory(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), map[string]Limit{})
	if v, _ := l.Allow(context.Background(), "nope", "x"); !v.Allowed {
		t.Fatal("unknown category must pass")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_, _ = store.Incr(ctx, "auth:a", time.Minute)
	_, _ = store.Incr(ctx, "auth:b", time.Hour)

	now = now.Add(2 * time.Minute)
	if err := store.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	store.mu.Lock()
	_, aAlive := store.buckets["auth:a"]
	_, bAlive := store.buckets["auth:b"]
	store.mu.Unlock()

	if aAlive {
		t.Fatal("expired bucket survived sweep")
	}
	if !bAlive {
		t.Fatal("live bucket removed by sweep")
	}
}

func TestClientIDDerivation(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientID(r); got != "203.0.113.7" {
		t.Fatalf("xff: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	r.Header.Set("X-Real-IP", "203.0.113.8")
	if got := ClientID(r); got != "203.0.113.8" {
		t.Fatalf("real-ip: got %q", got)
	}

	// httptest подставляет RemoteAddr
	r = httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	if got := ClientID(r); got == "" {
		t.Fatal("client id must never be empty")
	}

	// совсем без адреса — хэш user agent
	r = httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	r.RemoteAddr = ""
	r.Header.Set("User-Agent", "Mozilla/5.0")
	if got := ClientID(r); len(got) < 4 || got[:3] != "ua-" {
		t.Fatalf("fallback id = %q", got)
	}
}
