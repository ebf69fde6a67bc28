package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
)

// PendingCounterCache caches the pending approval counter shown on the
// approver dashboard. Any mutation of the approval table invalidates
// the key; the next read repopulates it from PostgreSQL.
type PendingCounterCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewPendingCounterCache constructs a cache using the given key prefix
// and entry TTL.
func NewPendingCounterCache(client *redis.Client, keyPrefix string, ttl time.Duration) *PendingCounterCache {
	if keyPrefix == "" {
		keyPrefix = "telemed:aprobaciones_pendientes"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PendingCounterCache{
		client: client,
		key:    keyPrefix + ":count",
		ttl:    ttl,
	}
}

// Get returns the cached counter. ok is false on a cache miss.
func (c *PendingCounterCache) Get(ctx context.Context) (int, bool, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get pending counter: %w", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		// Corrupted entry: treat as a miss so it gets rewritten.
		return 0, false, nil
	}

	return count, true, nil
}

// Set stores the counter with the configured TTL.
func (c *PendingCounterCache) Set(ctx context.Context, count int) error {
	if err := c.client.Set(ctx, c.key, strconv.Itoa(count), c.ttl).Err(); err != nil {
		return fmt.Errorf("set pending counter: %w", err)
	}
	return nil
}

// Invalidate drops the cached counter.
func (c *PendingCounterCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate pending counter: %w", err)
	}
	return nil
}

var _ port.PendingCounterCache = (*PendingCounterCache)(nil)
