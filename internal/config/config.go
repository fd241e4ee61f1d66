// Package config defines the top-level configuration for whalebot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WHALEBOT_* environment
// variables.
type Config struct {
	Coin        string            `toml:"coin"`
	Exchanges   ExchangesConfig   `toml:"exchanges"`
	Aggregation AggregationConfig `toml:"aggregation"`
	Threshold   ThresholdConfig   `toml:"threshold"`
	Sweep       SweepConfig       `toml:"sweep"`
	Notify      NotifyConfig      `toml:"notify"`
	MarketData  MarketDataConfig  `toml:"market_data"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Images      ImagesConfig      `toml:"images"`
	Server      ServerConfig      `toml:"server"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ExchangeConfig holds the feed parameters for a single exchange.
type ExchangeConfig struct {
	Enabled   bool     `toml:"enabled"`
	WsURL     string   `toml:"ws_url"`
	Pairs     []string `toml:"pairs"`
	MarketURL string   `toml:"market_url"`
}

// ExchangesConfig holds per-exchange feed settings.
type ExchangesConfig struct {
	NonKYC   ExchangeConfig `toml:"nonkyc"`
	CoinEx   ExchangeConfig `toml:"coinex"`
	AscendEX ExchangeConfig `toml:"ascendex"`
	// AvailabilityCheckInterval is how often a disabled-looking listing is
	// re-probed before its feed starts.
	AvailabilityCheckInterval duration `toml:"availability_check_interval"`
}

// AggregationConfig holds trade-aggregation window parameters.
type AggregationConfig struct {
	Enabled       bool `toml:"enabled"`
	WindowSeconds int  `toml:"window_seconds"`
	// CountUnknownSide treats trades with no reported side as buys, matching
	// feeds that omit side information. Off by default; unknown-side trades
	// are excluded from buy volume unless explicitly enabled.
	CountUnknownSide bool `toml:"count_unknown_side"`
}

// Window returns the aggregation window as a duration.
func (a AggregationConfig) Window() time.Duration {
	return time.Duration(a.WindowSeconds) * time.Second
}

// DynamicThresholdConfig holds the volume-adjusted threshold parameters.
type DynamicThresholdConfig struct {
	Enabled              bool    `toml:"enabled"`
	VolumeMultiplier     float64 `toml:"volume_multiplier"`
	MinThreshold         float64 `toml:"min_threshold"`
	MaxThreshold         float64 `toml:"max_threshold"`
	RecalcIntervalSecond int     `toml:"recalc_interval_seconds"`
}

// ThresholdConfig holds the alert threshold parameters.
type ThresholdConfig struct {
	BaseValue float64                `toml:"base_value"`
	Dynamic   DynamicThresholdConfig `toml:"dynamic"`
}

// SweepConfig holds orderbook sweep detection parameters. MinValue is an
// independent floor, not tied to the aggregation threshold.
type SweepConfig struct {
	Enabled  bool    `toml:"enabled"`
	MinValue float64 `toml:"min_value"`
}

// NotifyConfig holds notification destinations and delivery parameters.
// Telegram chat IDs and Discord webhooks each become one independent
// destination in the dispatcher fan-out.
type NotifyConfig struct {
	TelegramToken      string   `toml:"telegram_token"`
	TelegramChatIDs    []string `toml:"telegram_chat_ids"`
	DiscordWebhookURLs []string `toml:"discord_webhook_urls"`
	AttemptTimeout     duration `toml:"attempt_timeout"`
	DedupTTL           duration `toml:"dedup_ttl"`
	// RateLimitPerMinute caps alert sends per destination; 0 disables the cap.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// MarketDataConfig selects the REST sources backing price, market cap, and
// 24h volume lookups, plus the per-exchange availability probes.
type MarketDataConfig struct {
	NonKYCAPIURL     string `toml:"nonkyc_api_url"`
	CoinExAPIURL     string `toml:"coinex_api_url"`
	AscendEXAPIURL   string `toml:"ascendex_api_url"`
	LiveCoinWatchURL string `toml:"livecoinwatch_url"`
	// LiveCoinWatchKey enables the fallback rate source. Empty disables it.
	LiveCoinWatchKey string `toml:"livecoinwatch_api_key"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for alert history.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ImagesConfig holds the S3-compatible bucket that stores alert images.
type ImagesConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	Prefix         string   `toml:"prefix"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	CacheTTL       duration `toml:"cache_ttl"`
}

// ServerConfig holds HTTP admin API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Coin: "JKC",
		Exchanges: ExchangesConfig{
			NonKYC: ExchangeConfig{
				Enabled:   true,
				WsURL:     "wss://ws.nonkyc.io",
				Pairs:     []string{"JKC/USDT"},
				MarketURL: "https://nonkyc.io/market/JKC_USDT",
			},
			CoinEx: ExchangeConfig{
				Enabled:   true,
				WsURL:     "wss://socket.coinex.com/",
				Pairs:     []string{"JKC/USDT"},
				MarketURL: "https://www.coinex.com/exchange/JKC-USDT",
			},
			AscendEX: ExchangeConfig{
				Enabled:   true,
				WsURL:     "wss://ascendex.com/0/api/pro/v1/stream",
				Pairs:     []string{"JKC/USDT"},
				MarketURL: "https://ascendex.com/en/cashtrade-spottrading/usdt/JKC",
			},
			AvailabilityCheckInterval: duration{5 * time.Minute},
		},
		Aggregation: AggregationConfig{
			Enabled:          true,
			WindowSeconds:    8,
			CountUnknownSide: false,
		},
		Threshold: ThresholdConfig{
			BaseValue: 300,
			Dynamic: DynamicThresholdConfig{
				Enabled:              false,
				VolumeMultiplier:     0.05,
				MinThreshold:         100,
				MaxThreshold:         1000,
				RecalcIntervalSecond: 3600,
			},
		},
		Sweep: SweepConfig{
			Enabled:  true,
			MinValue: 80,
		},
		Notify: NotifyConfig{
			AttemptTimeout:     duration{10 * time.Second},
			DedupTTL:           duration{30 * time.Second},
			RateLimitPerMinute: 20,
		},
		MarketData: MarketDataConfig{
			NonKYCAPIURL:     "https://api.nonkyc.io",
			CoinExAPIURL:     "https://api.coinex.com",
			AscendEXAPIURL:   "https://ascendex.com",
			LiveCoinWatchURL: "https://api.livecoinwatch.com",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "whalebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Images: ImagesConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "whalebot-images",
			Prefix:         "alerts/",
			UseSSL:         false,
			ForcePathStyle: true,
			CacheTTL:       duration{10 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, monitor, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if strings.TrimSpace(c.Coin) == "" {
		errs = append(errs, "coin must not be empty")
	}

	// Aggregation
	if c.Aggregation.Enabled && c.Aggregation.WindowSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("aggregation: window_seconds must be positive when enabled, got %d", c.Aggregation.WindowSeconds))
	}

	// Threshold
	if c.Threshold.BaseValue <= 0 {
		errs = append(errs, "threshold: base_value must be > 0")
	}
	if c.Threshold.Dynamic.Enabled {
		d := c.Threshold.Dynamic
		if d.VolumeMultiplier < 0 {
			errs = append(errs, "threshold: dynamic.volume_multiplier must be >= 0")
		}
		if d.MinThreshold <= 0 {
			errs = append(errs, "threshold: dynamic.min_threshold must be > 0")
		}
		if d.MaxThreshold < d.MinThreshold {
			errs = append(errs, "threshold: dynamic.max_threshold must be >= min_threshold")
		}
		if d.RecalcIntervalSecond <= 0 {
			errs = append(errs, "threshold: dynamic.recalc_interval_seconds must be > 0")
		}
	}

	// Sweep
	if c.Sweep.Enabled && c.Sweep.MinValue <= 0 {
		errs = append(errs, "sweep: min_value must be > 0 when enabled")
	}

	// Notify — at least one destination must exist outside server-only mode.
	if c.Mode != "server" {
		hasTelegram := c.Notify.TelegramToken != "" && len(c.Notify.TelegramChatIDs) > 0
		hasDiscord := len(c.Notify.DiscordWebhookURLs) > 0
		if !hasTelegram && !hasDiscord {
			errs = append(errs, "notify: at least one destination (telegram_token + telegram_chat_ids, or discord_webhook_urls) is required for mode "+c.Mode)
		}
		if len(c.Notify.TelegramChatIDs) > 0 && c.Notify.TelegramToken == "" {
			errs = append(errs, "notify: telegram_token is required when telegram_chat_ids is set")
		}
	}
	if c.Notify.AttemptTimeout.Duration <= 0 {
		errs = append(errs, "notify: attempt_timeout must be > 0")
	}
	if c.Notify.RateLimitPerMinute < 0 {
		errs = append(errs, "notify: rate_limit_per_minute must be >= 0")
	}

	// Exchanges — every enabled exchange needs a ws_url and at least one pair.
	for name, ex := range map[string]ExchangeConfig{
		"nonkyc":   c.Exchanges.NonKYC,
		"coinex":   c.Exchanges.CoinEx,
		"ascendex": c.Exchanges.AscendEX,
	} {
		if !ex.Enabled {
			continue
		}
		if ex.WsURL == "" {
			errs = append(errs, fmt.Sprintf("exchanges: %s.ws_url must not be empty when enabled", name))
		}
		if len(ex.Pairs) == 0 {
			errs = append(errs, fmt.Sprintf("exchanges: %s.pairs must list at least one pair when enabled", name))
		}
	}

	// Market data
	if c.MarketData.NonKYCAPIURL == "" {
		errs = append(errs, "market_data: nonkyc_api_url must not be empty")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Images
	if c.Images.Enabled {
		if c.Images.Endpoint == "" {
			errs = append(errs, "images: endpoint must not be empty when enabled")
		}
		if c.Images.Bucket == "" {
			errs = append(errs, "images: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
