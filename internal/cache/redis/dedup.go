package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/junkhq/whalebot/internal/domain"
)

// AlertDeduper implements domain.AlertDeduper with a SET NX marker per key.
// The first caller within the TTL claims the key atomically; later callers
// see it as a duplicate.
type AlertDeduper struct {
	rdb *redis.Client
}

// NewAlertDeduper creates an AlertDeduper backed by the given Client.
func NewAlertDeduper(c *Client) *AlertDeduper {
	return &AlertDeduper{rdb: c.Underlying()}
}

func dedupKey(key string) string {
	return "dedup:" + key
}

// Seen marks the key and reports whether it had already been marked within
// the TTL.
func (d *AlertDeduper) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := d.rdb.SetNX(ctx, dedupKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: dedup seen %s: %w", key, err)
	}
	return !set, nil
}

// Compile-time interface check.
var _ domain.AlertDeduper = (*AlertDeduper)(nil)
