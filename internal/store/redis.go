package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client used for the token cache and the scan queue.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

const tokenCachePrefix = "campus:token:"

// CacheToken stores the serialized daily token for a date. Failures are the
// caller's to ignore; the cache is purely an optimization over Postgres.
func (r *Redis) CacheToken(ctx context.Context, date string, payload []byte, ttl time.Duration) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Set(ctx, tokenCachePrefix+date, payload, ttl).Err()
}

// CachedToken returns the serialized token for a date, or nil on miss.
func (r *Redis) CachedToken(ctx context.Context, date string) []byte {
	if r == nil || r.Client == nil {
		return nil
	}
	val, err := r.Client.Get(ctx, tokenCachePrefix+date).Bytes()
	if err != nil {
		return nil
	}
	return val
}

// InvalidateToken drops the cached token for a date after create/delete.
func (r *Redis) InvalidateToken(ctx context.Context, date string) {
	if r == nil || r.Client == nil {
		return
	}
	r.Client.Del(ctx, tokenCachePrefix+date)
}
