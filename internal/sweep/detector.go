// Package sweep detects single-update liquidity sweeps from orderbook
// snapshots: when one update removes a large USD value of resting ask
// liquidity, an alert fires immediately without passing through the
// aggregation window. A sweep is one discrete event, not a rate of small
// trades, so it bypasses time-windowing.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// askBook is the retained ask side for one (exchange, pair), keyed by price
// string for exact matching across snapshots.
type askBook struct {
	levels   map[string]decimal.Decimal // price -> quantity
	sequence int64
}

// Detector compares successive orderbook snapshots per (exchange, pair) and
// emits a sweep alert when the ask liquidity consumed in a single update
// meets the configured floor. Safe for concurrent use.
type Detector struct {
	alerts chan<- domain.AlertEvent
	logger *slog.Logger

	mu       sync.Mutex
	books    map[domain.PairKey]*askBook
	minValue decimal.Decimal
	enabled  bool

	now func() time.Time
}

// New creates a Detector with the given sweep floor. The floor is
// independent of the aggregation threshold.
func New(minValue decimal.Decimal, enabled bool, alerts chan<- domain.AlertEvent, logger *slog.Logger) *Detector {
	return &Detector{
		alerts:   alerts,
		logger:   logger.With(slog.String("component", "sweep_detector")),
		books:    make(map[domain.PairKey]*askBook),
		minValue: minValue,
		enabled:  enabled,
		now:      time.Now,
	}
}

// SetMinValue updates the sweep floor at runtime.
func (d *Detector) SetMinValue(v decimal.Decimal) {
	d.mu.Lock()
	d.minValue = v
	d.mu.Unlock()
}

// SetEnabled toggles sweep detection. State keeps updating while disabled so
// re-enabling does not misread the first diff as a sweep.
func (d *Detector) SetEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
}

// MinValue returns the current sweep floor.
func (d *Detector) MinValue() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minValue
}

// Enabled reports whether sweep detection is active.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// OnSnapshot ingests a new orderbook snapshot. The first snapshot for a key
// only primes state; afterwards each snapshot is diffed against the previous
// one and the removed ask value is evaluated against the floor. Snapshots
// with a sequence number at or below the retained one are discarded as stale.
func (d *Detector) OnSnapshot(ctx context.Context, snap domain.OrderbookSnapshot) {
	key := snap.Key()

	d.mu.Lock()
	prev, ok := d.books[key]
	if !ok {
		d.books[key] = bookFrom(snap)
		d.mu.Unlock()
		d.logger.Debug("orderbook primed", slog.String("key", key.String()))
		return
	}
	if snap.Sequence != 0 && snap.Sequence <= prev.sequence {
		d.mu.Unlock()
		return
	}

	sweptValue, sweptQuantity := diffAsks(prev, snap)
	d.books[key] = bookFrom(snap)
	enabled := d.enabled
	floor := d.minValue
	d.mu.Unlock()

	if !enabled || !sweptValue.IsPositive() {
		return
	}
	if sweptValue.LessThan(floor) {
		d.logger.Debug("ask liquidity removed below sweep floor",
			slog.String("key", key.String()),
			slog.String("value", sweptValue.String()),
			slog.String("floor", floor.String()),
		)
		return
	}

	vwap := decimal.Zero
	if sweptQuantity.IsPositive() {
		vwap = sweptValue.Div(sweptQuantity)
	}
	event := domain.AlertEvent{
		ID:            uuid.NewString(),
		Kind:          domain.AlertSweep,
		Exchange:      snap.Exchange,
		Pair:          snap.Pair,
		TotalValue:    sweptValue,
		TotalQuantity: sweptQuantity,
		VWAP:          vwap,
		TriggeredAt:   d.now(),
	}
	d.logger.Info("sweep detected",
		slog.String("key", key.String()),
		slog.String("value", sweptValue.String()),
		slog.String("quantity", sweptQuantity.String()),
	)

	select {
	case d.alerts <- event:
	case <-ctx.Done():
		d.logger.Warn("context cancelled while emitting sweep alert",
			slog.String("alert_id", event.ID),
		)
	}
}

// diffAsks sums the value and quantity of ask liquidity present in prev but
// missing or reduced in next. Levels that grew are ignored; they are resting
// orders being added, not consumed.
func diffAsks(prev *askBook, next domain.OrderbookSnapshot) (value, quantity decimal.Decimal) {
	remaining := make(map[string]decimal.Decimal, len(next.Asks))
	for _, level := range next.Asks {
		remaining[level.Price.String()] = level.Quantity
	}

	for price, oldQty := range prev.levels {
		newQty, exists := remaining[price]
		if exists && newQty.GreaterThanOrEqual(oldQty) {
			continue
		}
		filled := oldQty
		if exists {
			filled = oldQty.Sub(newQty)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			continue
		}
		value = value.Add(p.Mul(filled))
		quantity = quantity.Add(filled)
	}
	return value, quantity
}

func bookFrom(snap domain.OrderbookSnapshot) *askBook {
	levels := make(map[string]decimal.Decimal, len(snap.Asks))
	for _, level := range snap.Asks {
		if level.Quantity.IsPositive() {
			levels[level.Price.String()] = level.Quantity
		}
	}
	return &askBook{levels: levels, sequence: snap.Sequence}
}
