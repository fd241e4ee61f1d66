package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// thresholdKey holds the last dynamically computed threshold so a restart
// does not fall back to the base value while the first volume lookup is
// still pending or failing.
const thresholdKey = "threshold:current"

// ThresholdCache persists the computed dynamic threshold across restarts.
type ThresholdCache struct {
	rdb *redis.Client
}

// NewThresholdCache creates a ThresholdCache on the given client.
func NewThresholdCache(c *Client) *ThresholdCache {
	return &ThresholdCache{rdb: c.Underlying()}
}

// StoreThreshold saves the computed threshold. The value has no TTL; it is
// overwritten on every recalculation.
func (t *ThresholdCache) StoreThreshold(ctx context.Context, value decimal.Decimal) error {
	if err := t.rdb.Set(ctx, thresholdKey, value.String(), 0).Err(); err != nil {
		return fmt.Errorf("redis: store threshold: %w", err)
	}
	return nil
}

// LoadThreshold returns the saved threshold. The second return is false when
// no value has been stored yet.
func (t *ThresholdCache) LoadThreshold(ctx context.Context) (decimal.Decimal, bool, error) {
	raw, err := t.rdb.Get(ctx, thresholdKey).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis: load threshold: %w", err)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis: parse stored threshold %q: %w", raw, err)
	}
	return value, true, nil
}
