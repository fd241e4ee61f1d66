package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junkhq/whalebot/internal/domain"
	"github.com/junkhq/whalebot/internal/notify"
)

// MarketDataSource supplies best-effort market context for rendered alerts.
type MarketDataSource interface {
	MarketContext(ctx context.Context) (domain.MarketContext, error)
}

// Options configures a Dispatcher. The cache, store, image, and market
// collaborators are all optional; a nil field simply disables that concern.
type Options struct {
	// AttemptTimeout bounds each delivery attempt so one slow destination
	// cannot stall the others.
	AttemptTimeout time.Duration
	// DedupTTL suppresses a second alert with the same (kind, exchange,
	// pair) within this window. Zero disables dedup even when a deduper is
	// configured.
	DedupTTL time.Duration
	// RatePerMinute caps sends per destination; 0 disables the cap.
	RatePerMinute int
}

// Dispatcher consumes alert events and delivers each one to every configured
// destination independently and concurrently. Delivery is best effort:
// primary image attempt, text fallback, then the failure is logged and the
// event is never requeued.
type Dispatcher struct {
	destinations []notify.Destination
	renderer     *Renderer
	images       domain.ImagePicker
	dedup        domain.AlertDeduper
	limiter      domain.RateLimiter
	store        domain.AlertStore
	market       MarketDataSource
	opts         Options
	events       <-chan domain.AlertEvent
	logger       *slog.Logger
}

// New creates a Dispatcher reading from events.
func New(
	events <-chan domain.AlertEvent,
	destinations []notify.Destination,
	renderer *Renderer,
	images domain.ImagePicker,
	dedup domain.AlertDeduper,
	limiter domain.RateLimiter,
	store domain.AlertStore,
	market MarketDataSource,
	opts Options,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		destinations: destinations,
		renderer:     renderer,
		images:       images,
		dedup:        dedup,
		limiter:      limiter,
		store:        store,
		market:       market,
		opts:         opts,
		events:       events,
		logger:       logger.With(slog.String("component", "dispatcher")),
	}
}

// Run consumes alert events until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", slog.Int("destinations", len(d.destinations)))
	defer d.logger.Info("dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.events:
			d.Dispatch(ctx, event)
		}
	}
}

// Dispatch delivers one alert event to all destinations. It returns after
// every destination has finished its attempts; failures are logged and
// isolated per destination.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.AlertEvent) {
	if d.suppressed(ctx, event) {
		return
	}

	mctx := d.marketContext(ctx)
	title, body := d.renderer.Render(event, mctx)
	image, filename := d.pickImage(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, dest := range d.destinations {
		dest := dest
		g.Go(func() error {
			d.deliver(gctx, dest, title, body, image, filename)
			// Failures never propagate; one destination must not cancel the
			// group for the others.
			return nil
		})
	}
	_ = g.Wait()

	d.persist(ctx, event)
}

// suppressed checks the dedup cache. A cache error counts as not seen:
// better a duplicate alert than a dropped one.
func (d *Dispatcher) suppressed(ctx context.Context, event domain.AlertEvent) bool {
	if d.dedup == nil || d.opts.DedupTTL <= 0 {
		return false
	}
	key := fmt.Sprintf("%s:%s:%s", event.Kind, event.Exchange, event.Pair)
	seen, err := d.dedup.Seen(ctx, key, d.opts.DedupTTL)
	if err != nil {
		d.logger.Warn("alert dedup check failed, delivering anyway",
			slog.String("alert_id", event.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if seen {
		d.logger.Info("duplicate alert suppressed",
			slog.String("alert_id", event.ID),
			slog.String("key", key),
		)
	}
	return seen
}

func (d *Dispatcher) marketContext(ctx context.Context) domain.MarketContext {
	if d.market == nil {
		return domain.MarketContext{}
	}
	lookupCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	defer cancel()
	mctx, err := d.market.MarketContext(lookupCtx)
	if err != nil {
		d.logger.Warn("market context lookup failed, rendering without it",
			slog.String("error", err.Error()),
		)
		return domain.MarketContext{}
	}
	return mctx
}

func (d *Dispatcher) pickImage(ctx context.Context) ([]byte, string) {
	if d.images == nil {
		return nil, ""
	}
	image, filename, err := d.images.Random(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoImages) {
			d.logger.Warn("alert image pick failed, sending text-only",
				slog.String("error", err.Error()),
			)
		}
		return nil, ""
	}
	return image, filename
}

// deliver runs the at-most-two-attempts policy for one destination: an
// image-bearing primary attempt when an image is available, then a text-only
// fallback. Each attempt gets its own timeout.
func (d *Dispatcher) deliver(ctx context.Context, dest notify.Destination, title, body string, image []byte, filename string) {
	if !d.allowed(ctx, dest) {
		return
	}

	if image != nil {
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
		err := dest.SendImage(attemptCtx, title, body, image, filename)
		cancel()
		if err == nil {
			d.logger.Info("alert sent with image", slog.String("destination", dest.Name()))
			return
		}
		d.logger.Warn("image delivery failed, falling back to text",
			slog.String("destination", dest.Name()),
			slog.String("error", err.Error()),
		)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	err := dest.SendText(attemptCtx, title, body)
	cancel()
	if err != nil {
		d.logger.Error("alert delivery failed",
			slog.String("destination", dest.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Info("alert sent", slog.String("destination", dest.Name()))
}

// allowed applies the per-destination rate limit. A limiter error fails
// open.
func (d *Dispatcher) allowed(ctx context.Context, dest notify.Destination) bool {
	if d.limiter == nil || d.opts.RatePerMinute <= 0 {
		return true
	}
	ok, err := d.limiter.Allow(ctx, "alert:"+dest.Name(), d.opts.RatePerMinute, time.Minute)
	if err != nil {
		d.logger.Warn("rate limit check failed, delivering anyway",
			slog.String("destination", dest.Name()),
			slog.String("error", err.Error()),
		)
		return true
	}
	if !ok {
		d.logger.Warn("destination rate limited, alert skipped",
			slog.String("destination", dest.Name()),
		)
	}
	return ok
}

// persist writes the alert to history. Best effort only.
func (d *Dispatcher) persist(ctx context.Context, event domain.AlertEvent) {
	if d.store == nil {
		return
	}
	if err := d.store.Insert(ctx, event); err != nil {
		d.logger.Warn("alert history insert failed",
			slog.String("alert_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}
