package edge

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore — разделяемое хранилище бакетов для multi-instance деплоя.
// INCR атомарен на стороне сервера, окно держится через TTL ключа.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "edge:rl:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (Bucket, error) {
	k := s.prefix + key

	count, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return Bucket{}, err
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, k, window).Err(); err != nil {
			return Bucket{}, err
		}
	}

	ttl, err := s.rdb.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	now := time.Now()
	return Bucket{
		Count:    int(count),
		ResetAt:  now.Add(ttl),
		LastSeen: now,
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Sweep не нужен: redis сам выбрасывает ключи по TTL.
func (s *RedisStore) Sweep(context.Context) error { return nil }
