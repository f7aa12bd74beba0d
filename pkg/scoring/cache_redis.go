package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMaxSpendCache shares the population maximum across replicas. Keys
// embed the ledger fingerprint, so a reload never reads a stale value.
type RedisMaxSpendCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisMaxSpendCache creates a cache backed by a new Redis client.
func NewRedisMaxSpendCache(addr, password string, db int, ttl time.Duration) *RedisMaxSpendCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisMaxSpendCacheWithClient(rdb, ttl)
}

func NewRedisMaxSpendCacheWithClient(client redis.Cmdable, ttl time.Duration) *RedisMaxSpendCache {
	return &RedisMaxSpendCache{client: client, ttl: ttl}
}

func maxSpendKey(fingerprint string) string {
	return fmt.Sprintf("followup:max_spent:%s", fingerprint)
}

func (c *RedisMaxSpendCache) Get(ctx context.Context, fingerprint string) (float64, bool, error) {
	v, err := c.client.Get(ctx, maxSpendKey(fingerprint)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis max spend get: %w", err)
	}
	return v, true, nil
}

func (c *RedisMaxSpendCache) Set(ctx context.Context, fingerprint string, v float64) error {
	if err := c.client.Set(ctx, maxSpendKey(fingerprint), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis max spend set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisMaxSpendCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client when it owns a connection pool.
func (c *RedisMaxSpendCache) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
