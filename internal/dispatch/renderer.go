// Package dispatch consumes triggered alert events, renders them, and fans
// them out to every configured destination with per-destination failure
// isolation: an image-bearing attempt first, a text-only fallback second,
// and never more than those two attempts.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// maxOrdersShown caps the per-order breakdown in rendered alerts; the
// remainder is summarized. Display-only, the event keeps the full list.
const maxOrdersShown = 5

// Renderer formats alert events into a title and an HTML message body.
// Telegram consumes the HTML directly; the Discord destination strips it.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render builds the (title, body) pair for one alert event.
func (r *Renderer) Render(event domain.AlertEvent, mctx domain.MarketContext) (string, string) {
	base := baseAsset(event.Pair)

	var title string
	switch event.Kind {
	case domain.AlertSweep:
		title = fmt.Sprintf("🚨 %s ORDERBOOK SWEEP 🚨", event.Pair)
	case domain.AlertAggregated:
		title = fmt.Sprintf("🚨 %s BUY ALERT — %d Orders Aggregated 🚨", event.Pair, len(event.Trades))
	default:
		title = fmt.Sprintf("🚨 %s BUY ALERT 🚨", event.Pair)
	}

	var lines []string
	lines = append(lines,
		fmt.Sprintf("💰 <b>Total Value:</b> $%s USDT", event.TotalValue.StringFixed(2)),
		fmt.Sprintf("📊 <b>Quantity:</b> %s %s", event.TotalQuantity.StringFixed(4), base),
	)
	if len(event.Trades) > 1 {
		lines = append(lines, fmt.Sprintf("💵 <b>Avg Price:</b> $%s USDT", fmtPrice(event.VWAP)))
	} else {
		lines = append(lines, fmt.Sprintf("💵 <b>Price:</b> $%s USDT", fmtPrice(event.VWAP)))
	}
	lines = append(lines,
		fmt.Sprintf("🏦 <b>Exchange:</b> %s", event.Exchange),
		fmt.Sprintf("⏰ <b>Time:</b> %s", event.TriggeredAt.UTC().Format("15:04:05 UTC")),
	)

	if len(event.Trades) > 1 {
		lines = append(lines, "", "📋 <b>Individual Orders:</b>")
		for i, t := range event.Trades {
			if i == maxOrdersShown {
				lines = append(lines, fmt.Sprintf("... and %d more orders", len(event.Trades)-maxOrdersShown))
				break
			}
			lines = append(lines, fmt.Sprintf("Order %d: %s %s at $%s USDT",
				i+1, t.Quantity.StringFixed(4), base, fmtPrice(t.Price)))
		}
	}

	if !mctx.LastPriceUSD.IsZero() || !mctx.Volume24h.IsZero() {
		lines = append(lines, "", "📈 <b>Current Market:</b>")
		if !mctx.LastPriceUSD.IsZero() {
			lines = append(lines, fmt.Sprintf("💲 <b>%s/USDT:</b> $%s USDT", base, fmtPrice(mctx.LastPriceUSD)))
		}
		if !mctx.MarketCapUSD.IsZero() {
			lines = append(lines, fmt.Sprintf("🏛️ <b>Market Cap:</b> $%s", mctx.MarketCapUSD.StringFixed(0)))
		}
		if !mctx.Volume24h.IsZero() {
			lines = append(lines, fmt.Sprintf("📊 <b>24h Volume:</b> %s %s", mctx.Volume24h.StringFixed(2), base))
		}
	}

	if event.MarketURL != "" {
		lines = append(lines, "", fmt.Sprintf("🔗 <a href='%s'>Trade %s</a>", event.MarketURL, event.Pair))
	}

	return title, strings.Join(lines, "\n")
}

// fmtPrice formats a price with precision suited to its magnitude: small
// prices keep 8 fractional digits, larger ones 4.
func fmtPrice(p decimal.Decimal) string {
	if p.LessThan(decimal.NewFromInt(1)) {
		return p.StringFixed(8)
	}
	return p.StringFixed(4)
}

// baseAsset extracts the base symbol from a "BASE/QUOTE" pair string.
func baseAsset(pair string) string {
	if i := strings.Index(pair, "/"); i > 0 {
		return pair[:i]
	}
	return pair
}
