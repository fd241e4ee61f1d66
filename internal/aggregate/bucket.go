// Package aggregate implements the trade aggregation window: buy trades are
// grouped into one open bucket per (exchange, pair), and each bucket is
// evaluated against the active threshold exactly once when its window
// expires.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// bucket accumulates buy trades for one (exchange, pair) key. A bucket is
// open from the wall-clock arrival of its first trade until the aggregation
// window elapses; expiry is judged on arrival time, not trade timestamps, so
// out-of-order feeds neither reopen nor extend the window.
type bucket struct {
	key           domain.PairKey
	trades        []domain.TradeRecord
	openedAt      time.Time
	totalValue    decimal.Decimal
	totalQuantity decimal.Decimal
}

func newBucket(key domain.PairKey, openedAt time.Time) *bucket {
	return &bucket{
		key:      key,
		openedAt: openedAt,
	}
}

// add appends a trade and maintains the running totals.
func (b *bucket) add(t domain.TradeRecord) {
	b.trades = append(b.trades, t)
	b.totalValue = b.totalValue.Add(t.ValueUSD)
	b.totalQuantity = b.totalQuantity.Add(t.Quantity)
}

// expired reports whether the bucket's window has elapsed at now.
func (b *bucket) expired(now time.Time, window time.Duration) bool {
	return now.Sub(b.openedAt) > window
}

// vwap returns the volume-weighted average price over the bucket's trades,
// or zero if the bucket holds no quantity.
func (b *bucket) vwap() decimal.Decimal {
	if !b.totalQuantity.IsPositive() {
		return decimal.Zero
	}
	return b.totalValue.Div(b.totalQuantity)
}
