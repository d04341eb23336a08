// Package redis caches the jti blacklist in front of the durable store so
// the per-request revocation check does not always hit PostgreSQL.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"storegrid.io/internal/auth"
)

const keyPrefix = "blacklist:"

// BlacklistCache is a read-through cache over auth.RevocationStore. Only
// positive blacklist hits are cached; everything else delegates straight to
// the wrapped store, so a cache outage degrades to database lookups rather
// than wrong answers.
type BlacklistCache struct {
	next auth.RevocationStore
	rdb  *goredis.Client
	now  func() time.Time
}

var _ auth.RevocationStore = (*BlacklistCache)(nil)

// NewBlacklistCache wraps next with a Redis-backed jti cache.
func NewBlacklistCache(next auth.RevocationStore, rdb *goredis.Client) *BlacklistCache {
	return &BlacklistCache{next: next, rdb: rdb, now: time.Now}
}

// InsertBlacklisted writes through: the durable store first, then the cache
// with a TTL matching the token's remaining life.
func (c *BlacklistCache) InsertBlacklisted(ctx context.Context, token auth.BlacklistedToken) error {
	if err := c.next.InsertBlacklisted(ctx, token); err != nil {
		return err
	}
	c.cache(ctx, token.JTI, token.ExpiresAt)
	return nil
}

func (c *BlacklistCache) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	hit, err := c.rdb.Exists(ctx, keyPrefix+jti).Result()
	if err == nil && hit > 0 {
		return true, nil
	}
	// Cache miss or cache failure: the durable store decides.
	listed, err := c.next.IsBlacklisted(ctx, jti)
	if err != nil {
		return false, err
	}
	if listed {
		c.cache(ctx, jti, c.now().Add(time.Hour))
	}
	return listed, nil
}

func (c *BlacklistCache) cache(ctx context.Context, jti string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	// Best effort; a failed cache write only costs a database lookup later.
	_ = c.rdb.Set(ctx, keyPrefix+jti, 1, ttl).Err()
}

func (c *BlacklistCache) DeleteExpiredBlacklisted(ctx context.Context, before time.Time) (int64, error) {
	// Redis entries expire on their own TTL.
	return c.next.DeleteExpiredBlacklisted(ctx, before)
}

func (c *BlacklistCache) UpsertRevocation(ctx context.Context, userID uuid.UUID, revokedAt time.Time) error {
	return c.next.UpsertRevocation(ctx, userID, revokedAt)
}

func (c *BlacklistCache) RevocationTime(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	return c.next.RevocationTime(ctx, userID)
}

// Ping verifies the cache connection at startup.
func (c *BlacklistCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
