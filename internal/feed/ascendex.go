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

// AscendEXFeed subscribes to the trades channel on AscendEX. Trades carry
// abbreviated field names and a boolean "bm" flag instead of a side string:
// true is a buy, false is a sell.
type AscendEXFeed struct {
	pairs     []string
	marketURL string
	onTrade   TradeHandler
	runner    *runner
	logger    *slog.Logger
}

// NewAscendEXFeed creates an AscendEX trade feed for the given pairs.
func NewAscendEXFeed(wsURL, marketURL string, pairs []string, onTrade TradeHandler, avail AvailabilityChecker, checkInterval time.Duration, logger *slog.Logger) *AscendEXFeed {
	f := &AscendEXFeed{
		pairs:     pairs,
		marketURL: marketURL,
		onTrade:   onTrade,
		logger:    logger.With(slog.String("component", "ascendex_feed")),
	}
	f.runner = newRunner("ascendex", wsURL, f, avail, checkInterval, logger)
	return f
}

// Run connects and processes messages until ctx is cancelled.
func (f *AscendEXFeed) Run(ctx context.Context) error {
	return f.runner.Run(ctx)
}

func (f *AscendEXFeed) subscribe(conn *websocket.Conn) error {
	for _, pair := range f.pairs {
		err := sendJSON(conn, struct {
			Op string `json:"op"`
			Ch string `json:"ch"`
		}{Op: "sub", Ch: "trades:" + pair})
		if err != nil {
			return err
		}
	}
	return nil
}

type ascendexTrade struct {
	Price    decimal.Decimal `json:"p"`
	Quantity decimal.Decimal `json:"q"`
	TS       int64           `json:"ts"`
	IsBuy    bool            `json:"bm"`
}

func (f *AscendEXFeed) handle(ctx context.Context, raw []byte) {
	var msg struct {
		M      string          `json:"m"`
		Symbol string          `json:"symbol"`
		Data   []ascendexTrade `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.M != "trades" {
		return
	}

	pair := matchPair(f.pairs, msg.Symbol)
	for _, t := range msg.Data {
		side := domain.SideSell
		if t.IsBuy {
			side = domain.SideBuy
		}
		f.onTrade(ctx, domain.TradeRecord{
			Exchange:  "AscendEX",
			Pair:      pair,
			Price:     t.Price,
			Quantity:  t.Quantity,
			ValueUSD:  t.Price.Mul(t.Quantity),
			Side:      side,
			Timestamp: time.UnixMilli(t.TS).UTC(),
			MarketURL: f.marketURL,
		})
	}
}
