package threshold

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// VolumeSource supplies the recent traded volume used to scale the dynamic
// threshold, typically an exchange's 24h ticker volume.
type VolumeSource interface {
	Volume24h(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotCache persists the computed threshold across restarts. Optional; a
// restart without one starts from the base value until the first successful
// recalculation.
type SnapshotCache interface {
	StoreThreshold(ctx context.Context, value decimal.Decimal) error
	LoadThreshold(ctx context.Context) (decimal.Decimal, bool, error)
}

// Controller periodically recomputes the threshold from recent traded volume
// while dynamic mode is enabled. A failed volume lookup retains the previous
// value; the threshold is never left undefined.
type Controller struct {
	state    *State
	source   VolumeSource
	cache    SnapshotCache
	interval time.Duration
	logger   *slog.Logger
}

// NewController creates a Controller that recalculates every interval.
func NewController(state *State, source VolumeSource, interval time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		state:    state,
		source:   source,
		interval: interval,
		logger:   logger.With(slog.String("component", "threshold_controller")),
	}
}

// UseCache attaches a snapshot cache. Must be called before Run.
func (c *Controller) UseCache(cache SnapshotCache) {
	c.cache = cache
}

// Run blocks until the context is cancelled, recalculating on each tick. The
// first recalculation happens immediately so an enabled deployment does not
// sit on the base value for a full interval; a cached value from a previous
// run covers the gap if that first lookup fails.
func (c *Controller) Run(ctx context.Context) error {
	c.restoreCached(ctx)
	c.recalc(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.recalc(ctx)
		}
	}
}

func (c *Controller) recalc(ctx context.Context) {
	if !c.state.Get().Dynamic {
		return
	}

	volume, err := c.source.Volume24h(ctx)
	if err != nil {
		c.logger.Warn("volume lookup failed, retaining previous threshold",
			slog.String("error", err.Error()),
			slog.String("current", c.state.Current().String()),
		)
		return
	}

	updated := c.state.recalc(volume)
	c.logger.Info("threshold recalculated",
		slog.String("volume_24h", volume.String()),
		slog.String("threshold", updated.String()),
	)
	if c.cache != nil {
		if err := c.cache.StoreThreshold(ctx, updated); err != nil {
			c.logger.Warn("threshold cache store failed", slog.String("error", err.Error()))
		}
	}
}

// restoreCached seeds the state from the cache, if one is attached and holds
// a value from a previous run.
func (c *Controller) restoreCached(ctx context.Context) {
	if c.cache == nil || !c.state.Get().Dynamic {
		return
	}
	value, ok, err := c.cache.LoadThreshold(ctx)
	if err != nil {
		c.logger.Warn("threshold cache load failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}
	c.state.restore(value)
	c.logger.Info("threshold restored from cache",
		slog.String("threshold", c.state.Current().String()),
	)
}
