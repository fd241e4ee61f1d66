package aggregate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkhq/whalebot/internal/domain"
	"github.com/junkhq/whalebot/internal/threshold"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(t *testing.T, base float64, opts Options) (*Aggregator, chan domain.AlertEvent, *fakeClock) {
	t.Helper()
	state := threshold.NewState(decimal.NewFromFloat(base), threshold.DynamicParams{})
	alerts := make(chan domain.AlertEvent, 16)
	a := New(state, alerts, opts, testLogger())
	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	a.now = clock.Now
	return a, alerts, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func buyTrade(value float64) domain.TradeRecord {
	price := decimal.NewFromFloat(1)
	qty := decimal.NewFromFloat(value)
	return domain.TradeRecord{
		Exchange:  "NonKYC",
		Pair:      "JKC/USDT",
		Price:     price,
		Quantity:  qty,
		ValueUSD:  price.Mul(qty),
		Side:      domain.SideBuy,
		Timestamp: time.Now().UTC(),
		MarketURL: "https://nonkyc.io/market/JKC_USDT",
	}
}

func drain(alerts chan domain.AlertEvent) []domain.AlertEvent {
	var out []domain.AlertEvent
	for {
		select {
		case ev := <-alerts:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAggregatorWindowCrossesThreshold(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	// Three buys inside one window, individually below threshold.
	a.Ingest(ctx, buyTrade(120))
	clock.Advance(2 * time.Second)
	a.Ingest(ctx, buyTrade(120))
	clock.Advance(2 * time.Second)
	a.Ingest(ctx, buyTrade(120))

	// Nothing fires while the bucket is open.
	require.Empty(t, drain(alerts))

	clock.Advance(9 * time.Second)
	a.Tick(ctx, clock.Now())

	events := drain(alerts)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, domain.AlertAggregated, ev.Kind)
	assert.Equal(t, "NonKYC", ev.Exchange)
	assert.Equal(t, "JKC/USDT", ev.Pair)
	assert.True(t, ev.TotalValue.Equal(decimal.NewFromInt(360)), "total %s", ev.TotalValue)
	assert.Len(t, ev.Trades, 3)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "https://nonkyc.io/market/JKC_USDT", ev.MarketURL)
}

func TestAggregatorBelowThresholdDiscards(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	a.Ingest(ctx, buyTrade(100))
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())

	assert.Empty(t, drain(alerts))
}

func TestAggregatorThresholdBoundaryInclusive(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	a.Ingest(ctx, buyTrade(300))
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())

	// Exactly at threshold fires.
	require.Len(t, drain(alerts), 1)
}

func TestAggregatorFlushExactlyOnce(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	a.Ingest(ctx, buyTrade(500))
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())
	a.Tick(ctx, clock.Now())
	a.Tick(ctx, clock.Now().Add(time.Minute))

	assert.Len(t, drain(alerts), 1)
}

func TestAggregatorLateTradeFlushesAndReseeds(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	a.Ingest(ctx, buyTrade(400))
	clock.Advance(9 * time.Second)

	// Arrival after expiry flushes the old bucket and opens a new one seeded
	// with this trade.
	a.Ingest(ctx, buyTrade(50))

	events := drain(alerts)
	require.Len(t, events, 1)
	assert.True(t, events[0].TotalValue.Equal(decimal.NewFromInt(400)))

	// The reseeded bucket keeps accumulating.
	a.Ingest(ctx, buyTrade(350))
	clock.Advance(9 * time.Second)
	a.Tick(ctx, clock.Now())

	events = drain(alerts)
	require.Len(t, events, 1)
	assert.True(t, events[0].TotalValue.Equal(decimal.NewFromInt(400)))
	assert.Len(t, events[0].Trades, 2)
}

func TestAggregatorSeparateKeysSeparateBuckets(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	coinex := buyTrade(350)
	coinex.Exchange = "CoinEx"

	a.Ingest(ctx, buyTrade(350))
	a.Ingest(ctx, coinex)
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())

	events := drain(alerts)
	require.Len(t, events, 2)
	exchanges := []string{events[0].Exchange, events[1].Exchange}
	assert.ElementsMatch(t, []string{"NonKYC", "CoinEx"}, exchanges)
}

func TestAggregatorSellTradesFiltered(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	sell := buyTrade(1000)
	sell.Side = domain.SideSell
	a.Ingest(ctx, sell)

	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())
	assert.Empty(t, drain(alerts))

	count, value := a.Stats()
	assert.Equal(t, int64(1), count)
	assert.True(t, value.Equal(decimal.NewFromInt(1000)))
}

func TestAggregatorUnknownSideHonoursSetting(t *testing.T) {
	ctx := context.Background()

	unknown := buyTrade(500)
	unknown.Side = domain.SideUnknown

	a, alerts, clock := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})
	a.Ingest(ctx, unknown)
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())
	assert.Empty(t, drain(alerts), "unknown side dropped by default")

	a, alerts, clock = newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true, CountUnknownSide: true})
	a.Ingest(ctx, unknown)
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())
	assert.Len(t, drain(alerts), 1, "unknown side counted when enabled")
}

func TestAggregatorDisabledEmitsSingleLarge(t *testing.T) {
	a, alerts, _ := newTestAggregator(t, 300, Options{Enabled: false})
	ctx := context.Background()

	a.Ingest(ctx, buyTrade(100))
	assert.Empty(t, drain(alerts))

	a.Ingest(ctx, buyTrade(500))
	events := drain(alerts)
	require.Len(t, events, 1)
	assert.Equal(t, domain.AlertSingleLarge, events[0].Kind)
	assert.True(t, events[0].TotalValue.Equal(decimal.NewFromInt(500)))
	assert.Len(t, events[0].Trades, 1)
}

func TestAggregatorMalformedTradeDropped(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 1, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	bad := buyTrade(100)
	bad.Price = decimal.Zero
	a.Ingest(ctx, bad)

	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())
	assert.Empty(t, drain(alerts))
}

func TestAggregatorVWAP(t *testing.T) {
	a, alerts, clock := newTestAggregator(t, 100, Options{Window: 8 * time.Second, Enabled: true})
	ctx := context.Background()

	t1 := domain.TradeRecord{
		Exchange: "NonKYC", Pair: "JKC/USDT",
		Price:    decimal.NewFromInt(2),
		Quantity: decimal.NewFromInt(100),
		ValueUSD: decimal.NewFromInt(200),
		Side:     domain.SideBuy,
	}
	t2 := domain.TradeRecord{
		Exchange: "NonKYC", Pair: "JKC/USDT",
		Price:    decimal.NewFromInt(4),
		Quantity: decimal.NewFromInt(100),
		ValueUSD: decimal.NewFromInt(400),
		Side:     domain.SideBuy,
	}
	a.Ingest(ctx, t1)
	a.Ingest(ctx, t2)
	clock.Advance(10 * time.Second)
	a.Tick(ctx, clock.Now())

	events := drain(alerts)
	require.Len(t, events, 1)
	assert.True(t, events[0].VWAP.Equal(decimal.NewFromInt(3)), "vwap %s", events[0].VWAP)
	assert.True(t, events[0].TotalQuantity.Equal(decimal.NewFromInt(200)))
}

func TestAggregatorRuntimeSetters(t *testing.T) {
	a, _, _ := newTestAggregator(t, 300, Options{Window: 8 * time.Second, Enabled: true})

	a.SetWindow(15 * time.Second)
	a.SetEnabled(false)
	a.SetCountUnknownSide(true)

	opts := a.Options()
	assert.Equal(t, 15*time.Second, opts.Window)
	assert.False(t, opts.Enabled)
	assert.True(t, opts.CountUnknownSide)
}
