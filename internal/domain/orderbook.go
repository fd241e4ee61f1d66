package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+quantity entry in an orderbook.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Value returns the notional value resting at this level.
func (l PriceLevel) Value() decimal.Decimal {
	return l.Price.Mul(l.Quantity)
}

// OrderbookSnapshot is the bid/ask depth for one (exchange, pair) at a point
// in time. Sequence is the exchange-assigned monotonic update counter where
// available (0 otherwise); consumers use it to discard stale updates.
type OrderbookSnapshot struct {
	Exchange  string
	Pair      string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Sequence  int64
	Timestamp time.Time
}

// Key returns the (exchange, pair) key for this snapshot.
func (s OrderbookSnapshot) Key() PairKey {
	return PairKey{Exchange: s.Exchange, Pair: s.Pair}
}
