package issuer

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStatusCache shares terminal revocation answers between nodes. Only
// the revoked=true answer is cached; it can never become stale. Cache
// failures degrade to a chain lookup, never to a wrong answer.
type RedisStatusCache struct {
	client *goredis.Client
	logger *slog.Logger
}

func NewRedisStatusCache(client *goredis.Client, logger *slog.Logger) *RedisStatusCache {
	return &RedisStatusCache{client: client, logger: logger}
}

func statusKey(issuerDID string, nonce uint64) string {
	return fmt.Sprintf("revoked:%s:%d", issuerDID, nonce)
}

func (c *RedisStatusCache) IsRevoked(ctx context.Context, issuerDID string, nonce uint64) bool {
	n, err := c.client.Exists(ctx, statusKey(issuerDID, nonce)).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "revocation cache read failed", "error", err)
		return false
	}
	return n > 0
}

func (c *RedisStatusCache) MarkRevoked(ctx context.Context, issuerDID string, nonce uint64) {
	// Revocation is terminal, so no TTL.
	if err := c.client.Set(ctx, statusKey(issuerDID, nonce), "1", 0).Err(); err != nil {
		c.logger.WarnContext(ctx, "revocation cache write failed", "error", err)
	}
}
