package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix  = "idempotency:"
	defaultIdempotencyTTL = 24 * time.Hour
	// idempotencyLease bounds how long a key claimed by a worker that dies
	// before committing blocks redelivery.
	idempotencyLease = time.Minute
)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
	lease  time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl, lease: min(idempotencyLease, ttl)}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.lease).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ConfirmIdempotency rewrites the key with the full TTL, also when the lease
// ran out in the meantime.
func (r *RedisAdapter) ConfirmIdempotency(ctx context.Context, key string) error {
	return r.client.Set(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Err()
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
