package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junkhq/whalebot/internal/server"
	"github.com/junkhq/whalebot/internal/server/handler"
)

const (
	heartbeatInterval = time.Minute
	shutdownTimeout   = 10 * time.Second
)

// FullMode runs the complete pipeline: exchange feeds, aggregation, sweep
// detection, alert dispatch, the dynamic threshold controller and the HTTP
// admin API. Any component returning an error tears the whole group down.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Aggregator.Run(ctx) })
	g.Go(func() error { return deps.Dispatcher.Run(ctx) })
	g.Go(func() error { return deps.Controller.Run(ctx) })
	a.startFeeds(ctx, g, deps)
	a.startHeartbeat(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: full mode: %w", err)
	}
	return nil
}

// MonitorMode runs feeds and detection with alerts logged and dispatched to
// destinations, but without persistence, dedup or the admin API. Useful for
// dry runs against live exchange data.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Aggregator.Run(ctx) })
	g.Go(func() error { return deps.Dispatcher.Run(ctx) })
	g.Go(func() error { return deps.Controller.Run(ctx) })
	a.startFeeds(ctx, g, deps)
	a.startHeartbeat(ctx, g, deps)

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: monitor mode: %w", err)
	}
	return nil
}

// ServerMode runs only the HTTP admin API over the alert history and
// settings, without connecting to any exchange.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: server mode: %w", err)
	}
	return nil
}

func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, f := range deps.Feeds {
		f := f
		g.Go(func() error { return f.Run(ctx) })
	}
}

// startServer launches the admin API and a companion goroutine that drains
// it gracefully once the group context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(a.cfg.Mode, a.logger),
		Settings: handler.NewSettingsHandler(deps.Thresholds, deps.Aggregator, deps.Sweeps, a.logger),
		Alerts:   handler.NewAlertsHandler(deps.AlertStore, a.logger),
		Images:   handler.NewImagesHandler(deps.Images, a.logger),
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startHeartbeat logs a periodic status line so operators can tell at a
// glance that the bot is alive and what threshold it is currently applying.
func (a *App) startHeartbeat(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.logger.Info("heartbeat",
					slog.Int("feeds", len(deps.Feeds)),
					slog.String("threshold", deps.Thresholds.Current().StringFixed(2)),
				)
			}
		}
	})
}
