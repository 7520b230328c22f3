package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type counterCmds interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// noExpiry is what TTL reports for a key that exists without a timeout.
const noExpiry = time.Duration(-1)

// Counter is a fixed-window counter shared by every API instance.
type Counter struct {
	client counterCmds
}

func NewCounter(client counterCmds) *Counter {
	return &Counter{client: client}
}

// IncrWithExpire increments key and starts its window on the first hit. A key
// left without a timeout by an earlier failed EXPIRE gets one on its next hit.
func (c *Counter) IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n > 1 {
		ttl, err := c.client.TTL(ctx, key).Result()
		if err != nil {
			return n, fmt.Errorf("ttl %s: %w", key, err)
		}
		if ttl != noExpiry {
			return n, nil
		}
	}
	if err := c.client.Expire(ctx, key, window).Err(); err != nil {
		return n, fmt.Errorf("expire %s: %w", key, err)
	}
	return n, nil
}

// Count returns the current value of key, zero when it does not exist.
func (c *Counter) Count(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}
