package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateCounter is a fixed-window counter. The window starts with the first
// hit on a key and the key expires with it.
type RateCounter struct {
	client *goredis.Client
	prefix string
}

func NewRateCounter(client *goredis.Client) *RateCounter {
	return &RateCounter{client: client, prefix: "rate:"}
}

func (c *RateCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.prefix + key

	var count *goredis.IntCmd
	var ttl *goredis.DurationCmd
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		count = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := c.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = window
	}
	return count.Val(), remaining, nil
}
