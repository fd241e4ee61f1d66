package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// NonKYCFeed subscribes to trade and orderbook streams on the NonKYC
// exchange. NonKYC speaks a JSON-RPC style dialect: subscriptions are
// method calls, updates arrive as method notifications.
type NonKYCFeed struct {
	pairs     []string
	marketURL string
	onTrade   TradeHandler
	onBook    BookHandler
	runner    *runner
	logger    *slog.Logger
}

// NewNonKYCFeed creates a NonKYC feed for the given pairs. onBook may be nil
// when sweep detection is disabled; the orderbook subscription is skipped.
func NewNonKYCFeed(wsURL, marketURL string, pairs []string, onTrade TradeHandler, onBook BookHandler, avail AvailabilityChecker, checkInterval time.Duration, logger *slog.Logger) *NonKYCFeed {
	f := &NonKYCFeed{
		pairs:     pairs,
		marketURL: marketURL,
		onTrade:   onTrade,
		onBook:    onBook,
		logger:    logger.With(slog.String("component", "nonkyc_feed")),
	}
	f.runner = newRunner("nonkyc", wsURL, f, avail, checkInterval, logger)
	return f
}

// Run connects and processes messages until ctx is cancelled.
func (f *NonKYCFeed) Run(ctx context.Context) error {
	return f.runner.Run(ctx)
}

type nonkycRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
	ID     int            `json:"id"`
}

func (f *NonKYCFeed) subscribe(conn *websocket.Conn) error {
	id := 1
	for _, pair := range f.pairs {
		if err := sendJSON(conn, nonkycRequest{
			Method: "subscribeTrades",
			Params: map[string]any{"symbol": pair},
			ID:     id,
		}); err != nil {
			return err
		}
		id++
		if f.onBook == nil {
			continue
		}
		if err := sendJSON(conn, nonkycRequest{
			Method: "subscribeOrderbook",
			Params: map[string]any{"symbol": pair},
			ID:     id,
		}); err != nil {
			return err
		}
		id++
	}
	return nil
}

type nonkycTrade struct {
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Side      string          `json:"side"`
	Timestamp int64           `json:"timestamp"`
}

type nonkycLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (f *NonKYCFeed) handle(ctx context.Context, raw []byte) {
	var envelope struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.Method {
	case "updateTrades":
		var params struct {
			Symbol string        `json:"symbol"`
			Data   []nonkycTrade `json:"data"`
		}
		if err := json.Unmarshal(envelope.Params, &params); err != nil {
			f.logger.Debug("bad trade payload", slog.String("error", err.Error()))
			return
		}
		pair := matchPair(f.pairs, params.Symbol)
		for _, t := range params.Data {
			f.onTrade(ctx, domain.TradeRecord{
				Exchange:  "NonKYC",
				Pair:      pair,
				Price:     t.Price,
				Quantity:  t.Quantity,
				ValueUSD:  t.Price.Mul(t.Quantity),
				Side:      domain.ParseSide(t.Side),
				Timestamp: time.UnixMilli(t.Timestamp).UTC(),
				MarketURL: f.marketURL,
			})
		}

	case "snapshotOrderbook", "updateOrderbook":
		// Both carry the full book state; the sweep detector diffs
		// consecutive payloads and discards stale sequences itself.
		if f.onBook == nil {
			return
		}
		var params struct {
			Symbol   string        `json:"symbol"`
			Sequence int64         `json:"sequence"`
			Asks     []nonkycLevel `json:"ask"`
			Bids     []nonkycLevel `json:"bid"`
		}
		if err := json.Unmarshal(envelope.Params, &params); err != nil {
			f.logger.Debug("bad orderbook payload", slog.String("error", err.Error()))
			return
		}
		snap := domain.OrderbookSnapshot{
			Exchange:  "NonKYC",
			Pair:      matchPair(f.pairs, params.Symbol),
			Sequence:  params.Sequence,
			Timestamp: time.Now().UTC(),
			Asks:      make([]domain.PriceLevel, 0, len(params.Asks)),
			Bids:      make([]domain.PriceLevel, 0, len(params.Bids)),
		}
		for _, l := range params.Asks {
			snap.Asks = append(snap.Asks, domain.PriceLevel{Price: l.Price, Quantity: l.Quantity})
		}
		for _, l := range params.Bids {
			snap.Bids = append(snap.Bids, domain.PriceLevel{Price: l.Price, Quantity: l.Quantity})
		}
		f.onBook(ctx, snap)
	}
}
