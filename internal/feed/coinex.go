package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// CoinExFeed subscribes to the public deals stream on CoinEx. The deals
// endpoint needs no API key and uses positional JSON-RPC params:
// deals.update carries [market, trades].
type CoinExFeed struct {
	pairs     []string
	marketURL string
	onTrade   TradeHandler
	runner    *runner
	logger    *slog.Logger
}

// NewCoinExFeed creates a CoinEx trade feed for the given pairs.
func NewCoinExFeed(wsURL, marketURL string, pairs []string, onTrade TradeHandler, avail AvailabilityChecker, checkInterval time.Duration, logger *slog.Logger) *CoinExFeed {
	f := &CoinExFeed{
		pairs:     pairs,
		marketURL: marketURL,
		onTrade:   onTrade,
		logger:    logger.With(slog.String("component", "coinex_feed")),
	}
	f.runner = newRunner("coinex", wsURL, f, avail, checkInterval, logger)
	return f
}

// Run connects and processes messages until ctx is cancelled.
func (f *CoinExFeed) Run(ctx context.Context) error {
	return f.runner.Run(ctx)
}

func (f *CoinExFeed) subscribe(conn *websocket.Conn) error {
	// CoinEx markets have no separator: "JKC/USDT" subscribes as "JKCUSDT".
	markets := make([]string, 0, len(f.pairs))
	for _, pair := range f.pairs {
		markets = append(markets, strings.ReplaceAll(pair, "/", ""))
	}
	return sendJSON(conn, struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int      `json:"id"`
	}{Method: "deals.subscribe", Params: markets, ID: 2})
}

type coinexDeal struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
	DateMS int64           `json:"date_ms"`
}

func (f *CoinExFeed) handle(ctx context.Context, raw []byte) {
	var envelope struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}
	if envelope.Method != "deals.update" || len(envelope.Params) < 2 {
		return
	}

	var market string
	if err := json.Unmarshal(envelope.Params[0], &market); err != nil {
		return
	}
	var deals []coinexDeal
	if err := json.Unmarshal(envelope.Params[1], &deals); err != nil {
		f.logger.Debug("bad deals payload", slog.String("error", err.Error()))
		return
	}

	pair := matchPair(f.pairs, market)
	for _, d := range deals {
		f.onTrade(ctx, domain.TradeRecord{
			Exchange:  "CoinEx",
			Pair:      pair,
			Price:     d.Price,
			Quantity:  d.Amount,
			ValueUSD:  d.Price.Mul(d.Amount),
			Side:      domain.ParseSide(d.Type),
			Timestamp: time.UnixMilli(d.DateMS).UTC(),
			MarketURL: f.marketURL,
		})
	}
}
