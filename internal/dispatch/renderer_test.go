package dispatch

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/junkhq/whalebot/internal/domain"
)

func tradeAt(price, qty float64) domain.TradeRecord {
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromFloat(qty)
	return domain.TradeRecord{
		Exchange: "NonKYC",
		Pair:     "JKC/USDT",
		Price:    p,
		Quantity: q,
		ValueUSD: p.Mul(q),
		Side:     domain.SideBuy,
	}
}

func TestRenderAggregatedAlert(t *testing.T) {
	r := NewRenderer()
	event := domain.AlertEvent{
		Kind:          domain.AlertAggregated,
		Exchange:      "NonKYC",
		Pair:          "JKC/USDT",
		TotalValue:    decimal.NewFromInt(450),
		TotalQuantity: decimal.NewFromInt(200),
		VWAP:          decimal.NewFromFloat(2.25),
		Trades:        []domain.TradeRecord{tradeAt(2.2, 100), tradeAt(2.3, 100)},
		MarketURL:     "https://nonkyc.io/market/JKC_USDT",
		TriggeredAt:   time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC),
	}

	title, body := r.Render(event, domain.MarketContext{})

	assert.Contains(t, title, "JKC/USDT BUY ALERT")
	assert.Contains(t, title, "2 Orders Aggregated")
	assert.Contains(t, body, "$450.00 USDT")
	assert.Contains(t, body, "200.0000 JKC")
	assert.Contains(t, body, "Avg Price")
	assert.Contains(t, body, "NonKYC")
	assert.Contains(t, body, "12:30:45 UTC")
	assert.Contains(t, body, "Individual Orders")
	assert.Contains(t, body, "Order 1:")
	assert.Contains(t, body, "Order 2:")
	assert.Contains(t, body, "https://nonkyc.io/market/JKC_USDT")
}

func TestRenderCapsOrderBreakdown(t *testing.T) {
	r := NewRenderer()
	trades := make([]domain.TradeRecord, 8)
	for i := range trades {
		trades[i] = tradeAt(2, 50)
	}
	event := domain.AlertEvent{
		Kind:          domain.AlertAggregated,
		Pair:          "JKC/USDT",
		TotalValue:    decimal.NewFromInt(800),
		TotalQuantity: decimal.NewFromInt(400),
		VWAP:          decimal.NewFromInt(2),
		Trades:        trades,
	}

	_, body := r.Render(event, domain.MarketContext{})

	assert.Contains(t, body, "Order 5:")
	assert.NotContains(t, body, "Order 6:")
	assert.Contains(t, body, "... and 3 more orders")
}

func TestRenderSweepAlert(t *testing.T) {
	r := NewRenderer()
	event := domain.AlertEvent{
		Kind:          domain.AlertSweep,
		Exchange:      "CoinEx",
		Pair:          "JKC/USDT",
		TotalValue:    decimal.NewFromInt(144),
		TotalQuantity: decimal.NewFromInt(70),
		VWAP:          decimal.NewFromFloat(2.057),
	}

	title, body := r.Render(event, domain.MarketContext{})

	assert.Contains(t, title, "ORDERBOOK SWEEP")
	assert.NotContains(t, body, "Individual Orders")
	assert.Contains(t, body, "Price")
}

func TestRenderSingleLargeAlert(t *testing.T) {
	r := NewRenderer()
	event := domain.AlertEvent{
		Kind:          domain.AlertSingleLarge,
		Pair:          "JKC/USDT",
		TotalValue:    decimal.NewFromInt(500),
		TotalQuantity: decimal.NewFromInt(250),
		VWAP:          decimal.NewFromInt(2),
		Trades:        []domain.TradeRecord{tradeAt(2, 250)},
	}

	title, body := r.Render(event, domain.MarketContext{})

	assert.Contains(t, title, "BUY ALERT")
	assert.NotContains(t, title, "Aggregated")
	assert.Contains(t, body, "<b>Price:</b>")
	assert.NotContains(t, body, "Individual Orders")
}

func TestRenderMarketContext(t *testing.T) {
	r := NewRenderer()
	event := domain.AlertEvent{
		Kind:       domain.AlertSingleLarge,
		Pair:       "JKC/USDT",
		TotalValue: decimal.NewFromInt(500),
		VWAP:       decimal.NewFromInt(2),
	}
	mctx := domain.MarketContext{
		LastPriceUSD: decimal.NewFromFloat(2.15),
		MarketCapUSD: decimal.NewFromInt(25000000),
		Volume24h:    decimal.NewFromInt(120000),
	}

	_, body := r.Render(event, mctx)

	assert.Contains(t, body, "Current Market")
	assert.Contains(t, body, "2.1500")
	assert.Contains(t, body, "25000000")
	assert.Contains(t, body, "120000.00")
}

func TestRenderOmitsEmptyMarketContext(t *testing.T) {
	r := NewRenderer()
	event := domain.AlertEvent{
		Kind:       domain.AlertSingleLarge,
		Pair:       "JKC/USDT",
		TotalValue: decimal.NewFromInt(500),
		VWAP:       decimal.NewFromInt(2),
	}

	_, body := r.Render(event, domain.MarketContext{})

	assert.NotContains(t, body, "Current Market")
	assert.NotContains(t, body, "Trade JKC/USDT", "no link line without a market URL")
}

func TestFmtPricePrecision(t *testing.T) {
	assert.Equal(t, "0.00012345", fmtPrice(decimal.NewFromFloat(0.00012345)))
	assert.Equal(t, "2.2500", fmtPrice(decimal.NewFromFloat(2.25)))
}

func TestBaseAsset(t *testing.T) {
	assert.Equal(t, "JKC", baseAsset("JKC/USDT"))
	assert.Equal(t, "JKCUSDT", baseAsset("JKCUSDT"))
	assert.True(t, strings.HasPrefix(baseAsset("BTC/USD"), "BTC"))
}
