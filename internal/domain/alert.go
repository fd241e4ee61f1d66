package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind distinguishes how an alert was triggered.
type AlertKind string

const (
	// AlertAggregated fires when a window of buy trades crosses the threshold.
	AlertAggregated AlertKind = "aggregated"
	// AlertSweep fires when a single orderbook update removes a large amount
	// of resting ask liquidity.
	AlertSweep AlertKind = "sweep"
	// AlertSingleLarge fires for one trade crossing the threshold while
	// aggregation is disabled.
	AlertSingleLarge AlertKind = "single_large"
)

// AlertEvent is emitted once per triggered alert and handed to the dispatcher
// exactly once. It is never retried or requeued.
type AlertEvent struct {
	ID            string // UUID, assigned at emit time
	Kind          AlertKind
	Exchange      string
	Pair          string
	TotalValue    decimal.Decimal // USD-equivalent
	TotalQuantity decimal.Decimal
	// VWAP is the volume-weighted average price over the contributing trades
	// (TotalValue / TotalQuantity).
	VWAP        decimal.Decimal
	Trades      []TradeRecord // contributing trades in arrival order; empty for sweeps
	MarketURL   string
	TriggeredAt time.Time
}

// MarketContext is best-effort market data attached to a rendered alert.
// Zero values mean the lookup failed or was skipped; rendering degrades
// gracefully.
type MarketContext struct {
	LastPriceUSD decimal.Decimal
	MarketCapUSD decimal.Decimal
	Volume24h    decimal.Decimal
}
