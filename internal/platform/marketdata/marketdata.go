// Package marketdata composes the per-exchange REST clients into the two
// capabilities the rest of the bot consumes: a market context source for
// alert rendering and a 24h volume source for dynamic thresholds.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// Source is a full market data provider.
type Source interface {
	MarketContext(ctx context.Context) (domain.MarketContext, error)
	Volume24h(ctx context.Context) (decimal.Decimal, error)
}

// Fallback tries each source in order and returns the first success.
type Fallback struct {
	sources []Source
	logger  *slog.Logger
}

// NewFallback creates a Fallback over the given sources. Order matters:
// earlier sources are preferred.
func NewFallback(logger *slog.Logger, sources ...Source) *Fallback {
	return &Fallback{
		sources: sources,
		logger:  logger.With(slog.String("component", "marketdata")),
	}
}

// MarketContext returns the first successful lookup.
func (f *Fallback) MarketContext(ctx context.Context) (domain.MarketContext, error) {
	var lastErr error
	for _, s := range f.sources {
		mctx, err := s.MarketContext(ctx)
		if err == nil {
			return mctx, nil
		}
		lastErr = err
		f.logger.Debug("market context source failed, trying next", slog.String("error", err.Error()))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("marketdata: no sources configured")
	}
	return domain.MarketContext{}, fmt.Errorf("marketdata: all sources failed: %w", lastErr)
}

// Volume24h returns the first successful lookup.
func (f *Fallback) Volume24h(ctx context.Context) (decimal.Decimal, error) {
	var lastErr error
	for _, s := range f.sources {
		vol, err := s.Volume24h(ctx)
		if err == nil {
			return vol, nil
		}
		lastErr = err
		f.logger.Debug("volume source failed, trying next", slog.String("error", err.Error()))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("marketdata: no sources configured")
	}
	return decimal.Zero, fmt.Errorf("marketdata: all sources failed: %w", lastErr)
}
