package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/aggregate"
	"github.com/junkhq/whalebot/internal/cache/redis"
	"github.com/junkhq/whalebot/internal/config"
	"github.com/junkhq/whalebot/internal/dispatch"
	"github.com/junkhq/whalebot/internal/domain"
	"github.com/junkhq/whalebot/internal/feed"
	"github.com/junkhq/whalebot/internal/images"
	"github.com/junkhq/whalebot/internal/notify"
	"github.com/junkhq/whalebot/internal/platform/livecoinwatch"
	"github.com/junkhq/whalebot/internal/platform/marketdata"
	"github.com/junkhq/whalebot/internal/platform/nonkyc"
	"github.com/junkhq/whalebot/internal/store/postgres"
	"github.com/junkhq/whalebot/internal/sweep"
	"github.com/junkhq/whalebot/internal/threshold"
)

// alertBuffer is the capacity of the alert channel between the detection
// components and the dispatcher.
const alertBuffer = 64

// Runner is anything driven by its own goroutine until ctx cancellation.
type Runner interface {
	Run(ctx context.Context) error
}

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Core alerting pipeline.
	Thresholds *threshold.State
	Aggregator *aggregate.Aggregator
	Sweeps     *sweep.Detector
	Dispatcher *dispatch.Dispatcher
	Controller *threshold.Controller

	// Exchange feeds, one Runner per enabled exchange.
	Feeds []Runner

	// Storage and caches; nil in modes that do not wire them.
	AlertStore domain.AlertStore
	Images     *images.Library

	// Market data for rendering and the admin heartbeat.
	Market *marketdata.Fallback
}

// needsPostgres returns true for modes that persist alert history.
func needsPostgres(mode string) bool {
	return mode == "full" || mode == "server"
}

// needsRedis returns true for modes that dispatch alerts and therefore
// dedup and rate limit.
func needsRedis(mode string) bool {
	return mode == "full"
}

// needsS3 returns true for modes that use the alert image library.
func needsS3(mode string) bool {
	return mode == "full" || mode == "server"
}

// needsFeeds returns true for modes that consume live exchange data.
func needsFeeds(mode string) bool {
	return mode == "full" || mode == "monitor"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Market data sources ---
	// NonKYC is primary; LiveCoinWatch is the fallback when a key is set.
	primaryPair := firstPair(cfg)
	nonkycClient := nonkyc.NewClient(cfg.MarketData.NonKYCAPIURL, primaryPair)
	sources := []marketdata.Source{nonkycClient}
	if cfg.MarketData.LiveCoinWatchKey != "" {
		sources = append(sources, livecoinwatch.NewClient(
			cfg.MarketData.LiveCoinWatchURL,
			cfg.MarketData.LiveCoinWatchKey,
			cfg.Coin,
		))
	}
	deps.Market = marketdata.NewFallback(logger, sources...)

	// --- Threshold state + dynamic controller ---
	deps.Thresholds = threshold.NewState(
		decimal.NewFromFloat(cfg.Threshold.BaseValue),
		threshold.DynamicParams{
			VolumeMultiplier: decimal.NewFromFloat(cfg.Threshold.Dynamic.VolumeMultiplier),
			MinThreshold:     decimal.NewFromFloat(cfg.Threshold.Dynamic.MinThreshold),
			MaxThreshold:     decimal.NewFromFloat(cfg.Threshold.Dynamic.MaxThreshold),
		},
	)
	if cfg.Threshold.Dynamic.Enabled {
		deps.Thresholds.SetDynamic(true)
	}
	// The controller always runs so that enabling dynamic mode through the
	// settings API takes effect on the next tick; it no-ops while fixed.
	deps.Controller = threshold.NewController(
		deps.Thresholds,
		deps.Market,
		time.Duration(cfg.Threshold.Dynamic.RecalcIntervalSecond)*time.Second,
		logger,
	)

	// --- Detection pipeline ---
	alerts := make(chan domain.AlertEvent, alertBuffer)
	deps.Aggregator = aggregate.New(deps.Thresholds, alerts, aggregate.Options{
		Window:           cfg.Aggregation.Window(),
		Enabled:          cfg.Aggregation.Enabled,
		CountUnknownSide: cfg.Aggregation.CountUnknownSide,
	}, logger)
	deps.Sweeps = sweep.New(
		decimal.NewFromFloat(cfg.Sweep.MinValue),
		cfg.Sweep.Enabled,
		alerts,
		logger,
	)

	// --- PostgreSQL alert history ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.AlertStore = postgres.NewAlertStore(pgClient.Pool())
	}

	// --- Redis dedup + rate limiting ---
	var (
		deduper domain.AlertDeduper
		limiter domain.RateLimiter
	)
	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deduper = redis.NewAlertDeduper(redisClient)
		limiter = redis.NewRateLimiter(redisClient)
		deps.Controller.UseCache(redis.NewThresholdCache(redisClient))
	}

	// --- S3 alert image library ---
	var picker domain.ImagePicker
	if needsS3(mode) && cfg.Images.Enabled {
		s3Client, err := images.NewClient(ctx, images.ClientConfig{
			Endpoint:       cfg.Images.Endpoint,
			Region:         cfg.Images.Region,
			Bucket:         cfg.Images.Bucket,
			AccessKey:      cfg.Images.AccessKey,
			SecretKey:      cfg.Images.SecretKey,
			UseSSL:         cfg.Images.UseSSL,
			ForcePathStyle: cfg.Images.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 images: %w", err)
		}
		deps.Images = images.NewLibrary(s3Client, cfg.Images.Prefix, cfg.Images.CacheTTL.Duration)
		picker = deps.Images
	}

	// --- Dispatcher ---
	var destinations []notify.Destination
	if cfg.Notify.TelegramToken != "" {
		for _, chatID := range cfg.Notify.TelegramChatIDs {
			destinations = append(destinations, notify.NewTelegramDestination(cfg.Notify.TelegramToken, chatID))
		}
	}
	for i, url := range cfg.Notify.DiscordWebhookURLs {
		destinations = append(destinations, notify.NewDiscordDestination(url, i))
	}
	deps.Dispatcher = dispatch.New(
		alerts,
		destinations,
		dispatch.NewRenderer(),
		picker,
		deduper,
		limiter,
		deps.AlertStore,
		deps.Market,
		dispatch.Options{
			AttemptTimeout: cfg.Notify.AttemptTimeout.Duration,
			DedupTTL:       cfg.Notify.DedupTTL.Duration,
			RatePerMinute:  cfg.Notify.RateLimitPerMinute,
		},
		logger,
	)

	// --- Exchange feeds ---
	if needsFeeds(mode) {
		deps.Feeds = buildFeeds(cfg, nonkycClient, deps, logger)
	}

	return deps, cleanup, nil
}

// buildFeeds constructs one feed Runner per enabled exchange, all funnelling
// into the aggregator (trades) and sweep detector (orderbooks).
func buildFeeds(cfg *config.Config, nonkycClient *nonkyc.Client, deps *Dependencies, logger *slog.Logger) []Runner {
	onTrade := feed.TradeHandler(deps.Aggregator.Ingest)
	onBook := feed.BookHandler(deps.Sweeps.OnSnapshot)
	checkInterval := cfg.Exchanges.AvailabilityCheckInterval.Duration

	var feeds []Runner

	if ex := cfg.Exchanges.NonKYC; ex.Enabled {
		feeds = append(feeds, feed.NewNonKYCFeed(
			ex.WsURL, ex.MarketURL, ex.Pairs,
			onTrade, onBook,
			nonkycClient, checkInterval,
			logger,
		))
	}

	if ex := cfg.Exchanges.CoinEx; ex.Enabled && len(ex.Pairs) > 0 {
		probe := marketdata.NewTickerProbe(fmt.Sprintf(
			"%s/v1/market/ticker?market=%s",
			strings.TrimRight(cfg.MarketData.CoinExAPIURL, "/"),
			strings.ReplaceAll(ex.Pairs[0], "/", ""),
		))
		feeds = append(feeds, feed.NewCoinExFeed(
			ex.WsURL, ex.MarketURL, ex.Pairs,
			onTrade,
			probe, checkInterval,
			logger,
		))
	}

	if ex := cfg.Exchanges.AscendEX; ex.Enabled && len(ex.Pairs) > 0 {
		probe := marketdata.NewTickerProbe(fmt.Sprintf(
			"%s/api/pro/v1/ticker?symbol=%s",
			strings.TrimRight(cfg.MarketData.AscendEXAPIURL, "/"),
			ex.Pairs[0],
		))
		feeds = append(feeds, feed.NewAscendEXFeed(
			ex.WsURL, ex.MarketURL, ex.Pairs,
			onTrade,
			probe, checkInterval,
			logger,
		))
	}

	return feeds
}

// firstPair returns the first configured pair of the first enabled exchange,
// used to bind the market data clients. Falls back to COIN/USDT.
func firstPair(cfg *config.Config) string {
	for _, ex := range []config.ExchangeConfig{
		cfg.Exchanges.NonKYC,
		cfg.Exchanges.CoinEx,
		cfg.Exchanges.AscendEX,
	} {
		if ex.Enabled && len(ex.Pairs) > 0 {
			return ex.Pairs[0]
		}
	}
	return cfg.Coin + "/USDT"
}
