package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dom/streamgate/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

type SourceCache struct {
	client *goredis.Client
	prefix string
}

func NewSourceCache(client *goredis.Client) *SourceCache {
	return &SourceCache{client: client, prefix: "source:"}
}

func (c *SourceCache) Get(ctx context.Context, sourceID string) (*domain.MediaSource, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+sourceID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var source domain.MediaSource
	if err := json.Unmarshal(data, &source); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal media source: %w", err)
	}
	return &source, true, nil
}

func (c *SourceCache) Set(ctx context.Context, sourceID string, source *domain.MediaSource, ttl time.Duration) error {
	data, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to marshal media source: %w", err)
	}
	return c.client.Set(ctx, c.prefix+sourceID, data, ttl).Err()
}

func (c *SourceCache) Delete(ctx context.Context, sourceID string) error {
	return c.client.Del(ctx, c.prefix+sourceID).Err()
}
