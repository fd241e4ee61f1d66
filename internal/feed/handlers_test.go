package feed

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
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capture struct {
	trades []domain.TradeRecord
	books  []domain.OrderbookSnapshot
}

func (c *capture) onTrade(ctx context.Context, t domain.TradeRecord) {
	c.trades = append(c.trades, t)
}

func (c *capture) onBook(ctx context.Context, s domain.OrderbookSnapshot) {
	c.books = append(c.books, s)
}

func TestMatchPair(t *testing.T) {
	pairs := []string{"JKC/USDT"}
	assert.Equal(t, "JKC/USDT", matchPair(pairs, "JKCUSDT"))
	assert.Equal(t, "JKC/USDT", matchPair(pairs, "JKC_USDT"))
	assert.Equal(t, "JKC/USDT", matchPair(pairs, "JKC/USDT"))
	assert.Equal(t, "JKC/USDT", matchPair(pairs, "jkcusdt"))
	assert.Equal(t, "OTHERUSDT", matchPair(pairs, "OTHERUSDT"), "unknown symbols pass through")
}

func TestNonKYCTradeUpdate(t *testing.T) {
	c := &capture{}
	f := NewNonKYCFeed("wss://x", "https://nonkyc.io/market/JKC_USDT", []string{"JKC/USDT"}, c.onTrade, c.onBook, nil, 0, testLogger())

	raw := []byte(`{
		"method": "updateTrades",
		"params": {
			"symbol": "JKC_USDT",
			"data": [
				{"price": "2.15", "quantity": "120.5", "side": "buy", "timestamp": 1722513045000},
				{"price": "2.16", "quantity": "10", "side": "sell", "timestamp": 1722513046000}
			]
		}
	}`)
	f.handle(context.Background(), raw)

	require.Len(t, c.trades, 2)
	first := c.trades[0]
	assert.Equal(t, "NonKYC", first.Exchange)
	assert.Equal(t, "JKC/USDT", first.Pair)
	assert.True(t, first.Price.Equal(decimal.NewFromFloat(2.15)))
	assert.True(t, first.ValueUSD.Equal(decimal.NewFromFloat(2.15).Mul(decimal.NewFromFloat(120.5))))
	assert.Equal(t, domain.SideBuy, first.Side)
	assert.Equal(t, time.UnixMilli(1722513045000).UTC(), first.Timestamp)
	assert.Equal(t, "https://nonkyc.io/market/JKC_USDT", first.MarketURL)
	assert.Equal(t, domain.SideSell, c.trades[1].Side)
}

func TestNonKYCOrderbookSnapshot(t *testing.T) {
	c := &capture{}
	f := NewNonKYCFeed("wss://x", "", []string{"JKC/USDT"}, c.onTrade, c.onBook, nil, 0, testLogger())

	raw := []byte(`{
		"method": "snapshotOrderbook",
		"params": {
			"symbol": "JKC_USDT",
			"sequence": 42,
			"ask": [{"price": "2.20", "quantity": "100"}],
			"bid": [{"price": "2.10", "quantity": "50"}]
		}
	}`)
	f.handle(context.Background(), raw)

	require.Len(t, c.books, 1)
	snap := c.books[0]
	assert.Equal(t, "NonKYC", snap.Exchange)
	assert.Equal(t, "JKC/USDT", snap.Pair)
	assert.Equal(t, int64(42), snap.Sequence)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(decimal.NewFromFloat(2.2)))
	require.Len(t, snap.Bids, 1)
}

func TestNonKYCOrderbookUpdateAlsoFullBook(t *testing.T) {
	c := &capture{}
	f := NewNonKYCFeed("wss://x", "", []string{"JKC/USDT"}, c.onTrade, c.onBook, nil, 0, testLogger())

	raw := []byte(`{"method": "updateOrderbook", "params": {"symbol": "JKC_USDT", "sequence": 43, "ask": [], "bid": []}}`)
	f.handle(context.Background(), raw)

	require.Len(t, c.books, 1)
	assert.Equal(t, int64(43), c.books[0].Sequence)
	assert.Empty(t, c.books[0].Asks)
}

func TestNonKYCNilBookHandlerSkips(t *testing.T) {
	c := &capture{}
	f := NewNonKYCFeed("wss://x", "", []string{"JKC/USDT"}, c.onTrade, nil, nil, 0, testLogger())

	raw := []byte(`{"method": "snapshotOrderbook", "params": {"symbol": "JKC_USDT", "sequence": 1, "ask": [], "bid": []}}`)
	f.handle(context.Background(), raw)

	assert.Empty(t, c.books)
}

func TestNonKYCIgnoresUnknownMethods(t *testing.T) {
	c := &capture{}
	f := NewNonKYCFeed("wss://x", "", []string{"JKC/USDT"}, c.onTrade, c.onBook, nil, 0, testLogger())

	f.handle(context.Background(), []byte(`{"result": true, "id": 1}`))
	f.handle(context.Background(), []byte(`not json`))

	assert.Empty(t, c.trades)
	assert.Empty(t, c.books)
}

func TestCoinExDealsUpdate(t *testing.T) {
	c := &capture{}
	f := NewCoinExFeed("wss://x", "https://www.coinex.com/exchange/JKC-USDT", []string{"JKC/USDT"}, c.onTrade, nil, 0, testLogger())

	raw := []byte(`{
		"method": "deals.update",
		"params": [
			"JKCUSDT",
			[
				{"price": "2.14", "amount": "300", "type": "buy", "date_ms": 1722513045123},
				{"price": "2.13", "amount": "50", "type": "sell", "date_ms": 1722513046000}
			]
		]
	}`)
	f.handle(context.Background(), raw)

	require.Len(t, c.trades, 2)
	first := c.trades[0]
	assert.Equal(t, "CoinEx", first.Exchange)
	assert.Equal(t, "JKC/USDT", first.Pair)
	assert.True(t, first.ValueUSD.Equal(decimal.NewFromInt(642)), "2.14 * 300")
	assert.Equal(t, domain.SideBuy, first.Side)
	assert.Equal(t, time.UnixMilli(1722513045123).UTC(), first.Timestamp)
	assert.Equal(t, domain.SideSell, c.trades[1].Side)
}

func TestCoinExIgnoresOtherMethods(t *testing.T) {
	c := &capture{}
	f := NewCoinExFeed("wss://x", "", []string{"JKC/USDT"}, c.onTrade, nil, 0, testLogger())

	f.handle(context.Background(), []byte(`{"method": "deals.subscribe", "params": [], "id": 2}`))
	f.handle(context.Background(), []byte(`{"method": "deals.update", "params": ["JKCUSDT"]}`))

	assert.Empty(t, c.trades)
}

func TestAscendEXTrades(t *testing.T) {
	c := &capture{}
	f := NewAscendEXFeed("wss://x", "https://ascendex.com", []string{"JKC/USDT"}, c.onTrade, nil, 0, testLogger())

	raw := []byte(`{
		"m": "trades",
		"symbol": "JKC/USDT",
		"data": [
			{"p": "2.18", "q": "200", "ts": 1722513045000, "bm": true},
			{"p": "2.17", "q": "40", "ts": 1722513046000, "bm": false}
		]
	}`)
	f.handle(context.Background(), raw)

	require.Len(t, c.trades, 2)
	assert.Equal(t, "AscendEX", c.trades[0].Exchange)
	assert.Equal(t, domain.SideBuy, c.trades[0].Side)
	assert.Equal(t, domain.SideSell, c.trades[1].Side)
	assert.True(t, c.trades[0].ValueUSD.Equal(decimal.NewFromInt(436)), "2.18 * 200")
}

func TestAscendEXIgnoresNonTradeMessages(t *testing.T) {
	c := &capture{}
	f := NewAscendEXFeed("wss://x", "", []string{"JKC/USDT"}, c.onTrade, nil, 0, testLogger())

	f.handle(context.Background(), []byte(`{"m": "ping"}`))
	f.handle(context.Background(), []byte(`{"m": "sub", "ch": "trades:JKC/USDT"}`))

	assert.Empty(t, c.trades)
}
