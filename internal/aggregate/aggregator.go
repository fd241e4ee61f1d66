package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
	"github.com/junkhq/whalebot/internal/threshold"
)

// tickInterval is how often the proactive expiry sweep runs, so buckets on
// quiet pairs still flush without waiting for a new trade.
const tickInterval = time.Second

// Options configures an Aggregator. All three fields can be changed at
// runtime through the corresponding setters.
type Options struct {
	// Window is the aggregation window; buckets older than this are flushed.
	Window time.Duration
	// Enabled toggles windowing. When false, each buy trade is evaluated
	// against the threshold on its own and alerts fire immediately.
	Enabled bool
	// CountUnknownSide treats unknown-side trades as buys.
	CountUnknownSide bool
}

// Aggregator is the trade aggregation window manager. Exchange feeds call
// Ingest concurrently; Run drives the periodic expiry sweep. Triggered
// alerts are sent to the alerts channel, always outside the bucket-map lock
// so a slow consumer cannot stall ingestion of other keys.
type Aggregator struct {
	thresholds *threshold.State
	alerts     chan<- domain.AlertEvent
	logger     *slog.Logger

	mu           sync.Mutex
	buckets      map[domain.PairKey]*bucket
	window       time.Duration
	enabled      bool
	countUnknown bool

	// Sell-side volume is dropped before aggregation but tracked for
	// observability.
	sellTrades int64
	sellValue  decimal.Decimal

	now func() time.Time
}

// New creates an Aggregator that evaluates flushed buckets against state and
// emits triggered alerts on the alerts channel.
func New(state *threshold.State, alerts chan<- domain.AlertEvent, opts Options, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		thresholds:   state,
		alerts:       alerts,
		logger:       logger.With(slog.String("component", "aggregator")),
		buckets:      make(map[domain.PairKey]*bucket),
		window:       opts.Window,
		enabled:      opts.Enabled,
		countUnknown: opts.CountUnknownSide,
		now:          time.Now,
	}
}

// SetWindow updates the aggregation window. Buckets already open are judged
// against the new window on their next expiry check.
func (a *Aggregator) SetWindow(w time.Duration) {
	a.mu.Lock()
	a.window = w
	a.mu.Unlock()
}

// SetEnabled toggles aggregation at runtime.
func (a *Aggregator) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
}

// SetCountUnknownSide toggles whether unknown-side trades count as buys.
func (a *Aggregator) SetCountUnknownSide(count bool) {
	a.mu.Lock()
	a.countUnknown = count
	a.mu.Unlock()
}

// Options returns the current runtime settings.
func (a *Aggregator) Options() Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Options{Window: a.window, Enabled: a.enabled, CountUnknownSide: a.countUnknown}
}

// Stats reports the number and total value of sell trades filtered out since
// startup.
func (a *Aggregator) Stats() (sellTrades int64, sellValue decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sellTrades, a.sellValue
}

// Ingest feeds one normalized trade into the window manager. Sell trades and
// malformed records are dropped. A trade for a key whose bucket has expired
// flushes that bucket first, then opens a fresh one seeded with the trade.
func (a *Aggregator) Ingest(ctx context.Context, trade domain.TradeRecord) {
	if !trade.Valid() {
		a.logger.Debug("dropping malformed trade",
			slog.String("key", trade.Key().String()),
			slog.String("price", trade.Price.String()),
			slog.String("quantity", trade.Quantity.String()),
		)
		return
	}

	a.mu.Lock()
	if !a.keepLocked(trade.Side) {
		a.sellTrades++
		a.sellValue = a.sellValue.Add(trade.ValueUSD)
		a.mu.Unlock()
		a.logger.Debug("skipping non-buy trade",
			slog.String("key", trade.Key().String()),
			slog.String("side", string(trade.Side)),
			slog.String("value_usd", trade.ValueUSD.String()),
		)
		return
	}

	if !a.enabled || a.window <= 0 {
		a.mu.Unlock()
		a.evaluateSingle(ctx, trade)
		return
	}

	key := trade.Key()
	now := a.now()
	var flushed *bucket

	b, ok := a.buckets[key]
	if ok && b.expired(now, a.window) {
		delete(a.buckets, key)
		flushed = b
		b = nil
	}
	if b == nil {
		b = newBucket(key, now)
		a.buckets[key] = b
	}
	b.add(trade)
	a.mu.Unlock()

	if flushed != nil {
		a.evaluate(ctx, flushed)
	}
}

// Tick flushes every bucket whose window has expired at now, even if no new
// trade arrived for its key. Buckets are removed from the live map under the
// lock, so re-running Tick can never evaluate the same bucket twice.
func (a *Aggregator) Tick(ctx context.Context, now time.Time) {
	a.mu.Lock()
	var expired []*bucket
	for key, b := range a.buckets {
		if b.expired(now, a.window) {
			delete(a.buckets, key)
			expired = append(expired, b)
		}
	}
	a.mu.Unlock()

	for _, b := range expired {
		a.evaluate(ctx, b)
	}
}

// Run drives the periodic expiry sweep until the context is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	a.logger.Info("aggregator started")
	defer a.logger.Info("aggregator stopped")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Tick(ctx, a.now())
		}
	}
}

// keepLocked is the side filter. Callers hold a.mu.
func (a *Aggregator) keepLocked(side domain.TradeSide) bool {
	switch side {
	case domain.SideBuy:
		return true
	case domain.SideUnknown:
		return a.countUnknown
	default:
		return false
	}
}

// evaluate judges a flushed bucket against the threshold current at this
// moment and emits an aggregated alert when the total meets it. Below
// threshold the bucket is discarded with a diagnostic log.
func (a *Aggregator) evaluate(ctx context.Context, b *bucket) {
	required := a.thresholds.Current()
	if b.totalValue.LessThan(required) {
		a.logger.Debug("bucket below threshold, discarding",
			slog.String("key", b.key.String()),
			slog.Int("trades", len(b.trades)),
			slog.String("total_value", b.totalValue.String()),
			slog.String("threshold", required.String()),
		)
		return
	}

	first := b.trades[0]
	event := domain.AlertEvent{
		ID:            uuid.NewString(),
		Kind:          domain.AlertAggregated,
		Exchange:      b.key.Exchange,
		Pair:          b.key.Pair,
		TotalValue:    b.totalValue,
		TotalQuantity: b.totalQuantity,
		VWAP:          b.vwap(),
		Trades:        b.trades,
		MarketURL:     first.MarketURL,
		TriggeredAt:   a.now(),
	}
	a.logger.Info("aggregated alert triggered",
		slog.String("key", b.key.String()),
		slog.Int("trades", len(b.trades)),
		slog.String("total_value", b.totalValue.String()),
		slog.String("threshold", required.String()),
	)
	a.emit(ctx, event)
}

// evaluateSingle handles the aggregation-disabled path: one trade, one
// immediate threshold check.
func (a *Aggregator) evaluateSingle(ctx context.Context, trade domain.TradeRecord) {
	required := a.thresholds.Current()
	if trade.ValueUSD.LessThan(required) {
		a.logger.Debug("trade below threshold",
			slog.String("key", trade.Key().String()),
			slog.String("value_usd", trade.ValueUSD.String()),
			slog.String("threshold", required.String()),
		)
		return
	}

	event := domain.AlertEvent{
		ID:            uuid.NewString(),
		Kind:          domain.AlertSingleLarge,
		Exchange:      trade.Exchange,
		Pair:          trade.Pair,
		TotalValue:    trade.ValueUSD,
		TotalQuantity: trade.Quantity,
		VWAP:          trade.Price,
		Trades:        []domain.TradeRecord{trade},
		MarketURL:     trade.MarketURL,
		TriggeredAt:   a.now(),
	}
	a.logger.Info("single-trade alert triggered",
		slog.String("key", trade.Key().String()),
		slog.String("value_usd", trade.ValueUSD.String()),
		slog.String("threshold", required.String()),
	)
	a.emit(ctx, event)
}

func (a *Aggregator) emit(ctx context.Context, event domain.AlertEvent) {
	select {
	case a.alerts <- event:
	case <-ctx.Done():
		a.logger.Warn("context cancelled while emitting alert",
			slog.String("alert_id", event.ID),
			slog.String("kind", string(event.Kind)),
		)
	}
}
