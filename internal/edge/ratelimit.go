package edge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Bucket — счётчик запросов в пределах окна для одного идентификатора.
type Bucket struct {
	Count    int
	ResetAt  time.Time
	LastSeen time.Time
}

// RateLimitStore — инжектируемое хранилище бакетов: in-memory для одного
// инстанса, redis — для горизонтального масштабирования.
type RateLimitStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (Bucket, error)
	Delete(ctx context.Context, key string) error
	Sweep(ctx context.Context) error
}

// --- in-memory реализация ---

type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*Bucket),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || now.After(b.ResetAt) {
		b = &Bucket{ResetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.Count++
	b.LastSeen = now

	return *b, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)

	return nil
}

// Sweep удаляет бакеты с истёкшим окном.
func (s *MemoryStore) Sweep(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, b := range s.buckets {
		if now.After(b.ResetAt) {
			delete(s.buckets, k)
		}
	}

	return nil
}

// Run запускает периодическую чистку до отмены контекста.
func (s *MemoryStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// --- лимитер ---

type Limit struct {
	Requests int
	Window   time.Duration
}

type Verdict struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter struct {
	store  RateLimitStore
	limits map[string]Limit
}

func NewLimiter(store RateLimitStore, limits map[string]Limit) *Limiter {
	return &Limiter{store: store, limits: limits}
}

// Allow инкрементирует бакет категории и сверяет с лимитом. Неизвестная
// категория пропускается без учёта.
func (l *Limiter) Allow(ctx context.Context, category, clientID string) (Verdict, error) {
	lim, ok := l.limits[category]
	if !ok || lim.Requests <= 0 {
		return Verdict{Allowed: true}, nil
	}

	b, err := l.store.Incr(ctx, category+":"+clientID, lim.Window)
	if err != nil {
		return Verdict{}, err
	}

	remaining := lim.Requests - b.Count
	if remaining < 0 {
		remaining = 0
	}

	return Verdict{
		Allowed:   b.Count <= lim.Requests,
		Limit:     lim.Requests,
		Remaining: remaining,
		ResetAt:   b.ResetAt,
	}, nil
}

// ClientID — ip клиента из проксирующих заголовков, иначе хэш от UA.
func ClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	for _, h := range []string{"X-Real-IP", "X-Client-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(h)); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	sum := sha256.Sum256([]byte(r.UserAgent()))
	return "ua-" + hex.EncodeToString(sum[:8])
}
