// Package domain defines the core types shared across the whalebot: trades,
// orderbooks, alerts, and the store/cache interfaces their consumers depend
// on. Implementations live in sibling packages (aggregate, sweep, dispatch,
// store/postgres, cache/redis).
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide indicates whether a trade was buyer- or seller-initiated. Feeds
// that do not report a side deliver SideUnknown.
type TradeSide string

const (
	SideBuy     TradeSide = "buy"
	SideSell    TradeSide = "sell"
	SideUnknown TradeSide = "unknown"
)

// ParseSide normalizes the side strings seen across exchange feeds ("buy",
// "b", "BUY", "sell", "s", ...) into a TradeSide. Anything unrecognized maps
// to SideUnknown.
func ParseSide(s string) TradeSide {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "bid":
		return SideBuy
	case "sell", "s", "ask":
		return SideSell
	default:
		return SideUnknown
	}
}

// TradeRecord is one normalized trade as handed to the core by an exchange
// feed. ValueUSD is price*quantity converted to the USD-pegged quote if the
// pair's quote currency is not already one. Records are immutable after
// creation.
type TradeRecord struct {
	Exchange  string
	Pair      string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	ValueUSD  decimal.Decimal
	Side      TradeSide
	Timestamp time.Time
	// MarketURL points at the exchange's trading page for this pair, carried
	// through to rendered alerts.
	MarketURL string
}

// Key returns the aggregation key for this trade.
func (t TradeRecord) Key() PairKey {
	return PairKey{Exchange: t.Exchange, Pair: t.Pair}
}

// Valid reports whether the record can safely contribute to value sums.
// Feeds are expected to reject malformed payloads, but the core no-ops on
// non-positive price or quantity rather than corrupt a bucket total.
func (t TradeRecord) Valid() bool {
	return t.Price.IsPositive() && t.Quantity.IsPositive()
}

// PairKey identifies one (exchange, trading pair) stream.
type PairKey struct {
	Exchange string
	Pair     string
}

func (k PairKey) String() string {
	return k.Exchange + ":" + k.Pair
}
