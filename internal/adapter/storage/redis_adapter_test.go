package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	// Setup
	client.Del(ctx, idempotencyKeyPrefix+"test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}

	ttl, _ := client.TTL(ctx, idempotencyKeyPrefix+"test-idem-key").Result()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected ttl within a minute, got %s", ttl)
	}
}

func TestReleaseIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	client.Del(ctx, idempotencyKeyPrefix+"release-key")

	if ok, err := adapter.SetIdempotency(ctx, "release-key"); err != nil || !ok {
		t.Fatalf("expected first set to succeed, got %v (%v)", ok, err)
	}
	if err := adapter.ReleaseIdempotency(ctx, "release-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Key is free again
	ok, err := adapter.SetIdempotency(ctx, "release-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected set after release to succeed")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, 0)

	// Setup
	client.Del(ctx, idempotencyKeyPrefix+"concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}

func TestConfirmIdempotency_ExtendsLease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Hour)
	redisKey := idempotencyKeyPrefix + "confirm-key"

	client.Del(ctx, redisKey)

	if ok, err := adapter.SetIdempotency(ctx, "confirm-key"); err != nil || !ok {
		t.Fatalf("expected first set to succeed, got %v (%v)", ok, err)
	}
	leased, _ := client.TTL(ctx, redisKey).Result()
	if leased <= 0 || leased > idempotencyLease {
		t.Errorf("expected a lease of at most %s, got %s", idempotencyLease, leased)
	}

	if err := adapter.ConfirmIdempotency(ctx, "confirm-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	confirmed, _ := client.TTL(ctx, redisKey).Result()
	if confirmed <= idempotencyLease {
		t.Errorf("expected the full ttl after confirm, got %s", confirmed)
	}

	// Confirming after the lease already ran out still stores the key.
	client.Del(ctx, redisKey)
	if err := adapter.ConfirmIdempotency(ctx, "confirm-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := adapter.SetIdempotency(ctx, "confirm-key"); ok {
		t.Error("expected confirmed key to block a new claim")
	}
}
