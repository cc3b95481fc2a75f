package schema

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCache caches immutable, content-addressed schema documents. Entries
// carry no TTL: a CID's content cannot change.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, uri string) ([]byte, bool) {
	content, err := c.client.Get(ctx, cacheKey(uri)).Bytes()
	if err != nil {
		// Cache misses and transient redis failures look the same to the
		// resolver: fall through to the gateway.
		return nil, false
	}
	return content, true
}

func (c *RedisCache) Set(ctx context.Context, uri string, content []byte) {
	c.client.Set(ctx, cacheKey(uri), content, 0)
}

func cacheKey(uri string) string { return "schema:" + uri }
