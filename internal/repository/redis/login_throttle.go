package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LoginThrottle implements a sliding-window attempt counter on a Redis
// sorted set. Members are scored by attempt time so expired attempts can
// be trimmed with a single range removal.
type LoginThrottle struct {
	client *redis.Client
	prefix string
}

// NewLoginThrottle constructs a throttle store using the given key prefix.
func NewLoginThrottle(client *redis.Client, keyPrefix string) *LoginThrottle {
	if keyPrefix == "" {
		keyPrefix = "telemed:intentos"
	}
	return &LoginThrottle{client: client, prefix: keyPrefix}
}

// Take records an attempt and returns how many attempts fall inside the
// window ending at now, the new attempt included.
func (t *LoginThrottle) Take(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	fullKey := t.prefix + ":" + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "-inf", "("+cutoff)
	pipe.ZAdd(ctx, fullKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record login attempt: %w", err)
	}

	return int(card.Val()), nil
}
