package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the shared atomic counter used for rate limiting. Implementations
// must be safe for concurrent use across processes: the rate-limit window only
// works if every instance increments the same store.
type Counter interface {
	Ping(ctx context.Context) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCounter implements Counter using go-redis/v9.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a new RedisCounter from a Redis URL.
func NewRedisCounter(redisURL string) (*RedisCounter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCounter{client: redis.NewClient(opts)}, nil
}

func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// IncrWithExpiry atomically increments key, setting the expiry only when the
// key is created. The first increment in a window starts the clock; later
// increments never extend it, which keeps the window fixed.
func (c *RedisCounter) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
