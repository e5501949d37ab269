package candidateinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/go-redis/redis/v8"
)

// RedisTextCache stores recognized text keyed by document content hash,
// so re-runs over the same documents skip the OCR service.
type RedisTextCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTextCache(client *redis.Client, prefix string, ttl time.Duration) *RedisTextCache {
	return &RedisTextCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

var _ candidate.TextCache = (*RedisTextCache)(nil)

func (c *RedisTextCache) key(k string) string {
	return c.prefix + ":" + k
}

func (c *RedisTextCache) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return text, true, nil
}

func (c *RedisTextCache) Set(ctx context.Context, key, text string) error {
	if err := c.client.Set(ctx, c.key(key), text, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
