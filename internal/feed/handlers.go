package feed

import (
	"context"
	"strings"

	"github.com/junkhq/whalebot/internal/domain"
)

// TradeHandler is called for each normalized trade (aggregator ingest).
type TradeHandler func(ctx context.Context, trade domain.TradeRecord)

// BookHandler is called for each orderbook snapshot (sweep detector).
type BookHandler func(ctx context.Context, snap domain.OrderbookSnapshot)

// matchPair maps an exchange symbol back to its configured "BASE/QUOTE" pair.
// Exchanges echo symbols in their own shape ("JKCUSDT", "JKC_USDT"), so match
// after stripping separators. Unknown symbols pass through unchanged.
func matchPair(pairs []string, symbol string) string {
	canon := strings.ToUpper(strings.NewReplacer("/", "", "_", "", "-", "").Replace(symbol))
	for _, pair := range pairs {
		if strings.ToUpper(strings.ReplaceAll(pair, "/", "")) == canon {
			return pair
		}
	}
	return symbol
}
