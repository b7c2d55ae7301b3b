// internal/adapter/cache/presence_cache.go

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"aegis/internal/domain/presence"
)

// PresenceCache is a read-through cache of last known user locations in
// front of a durable presence store. Entries carry a TTL so a stale cache
// never outlives the publish cadence by much; the durable store stays the
// source of truth.
type PresenceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPresenceCache creates a presence cache on an existing redis client
func NewPresenceCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PresenceCache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PresenceCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// Get returns a cached location, or nil on a miss. Cache failures are
// reported as misses; the caller falls through to the store.
func (c *PresenceCache) Get(ctx context.Context, userID string) *presence.UserLocation {
	data, err := c.client.Get(ctx, presenceKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("presence cache read failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return nil
	}

	var loc presence.UserLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		c.logger.Warn("presence cache entry corrupt",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	return &loc
}

// Set stores a location with the configured TTL. Failures are logged and
// otherwise ignored; the cache is best-effort.
func (c *PresenceCache) Set(ctx context.Context, loc presence.UserLocation) {
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, presenceKey(loc.UserID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("presence cache write failed",
			zap.String("user_id", loc.UserID),
			zap.Error(err),
		)
	}
}
