package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WHALEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WHALEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Threshold ──
	setFloat64(&cfg.Threshold.BaseValue, "WHALEBOT_THRESHOLD_BASE_VALUE")
	setBool(&cfg.Threshold.Dynamic.Enabled, "WHALEBOT_THRESHOLD_DYNAMIC_ENABLED")
	setFloat64(&cfg.Threshold.Dynamic.VolumeMultiplier, "WHALEBOT_THRESHOLD_DYNAMIC_VOLUME_MULTIPLIER")
	setFloat64(&cfg.Threshold.Dynamic.MinThreshold, "WHALEBOT_THRESHOLD_DYNAMIC_MIN")
	setFloat64(&cfg.Threshold.Dynamic.MaxThreshold, "WHALEBOT_THRESHOLD_DYNAMIC_MAX")
	setInt(&cfg.Threshold.Dynamic.RecalcIntervalSecond, "WHALEBOT_THRESHOLD_DYNAMIC_RECALC_INTERVAL_SECONDS")

	// ── Aggregation ──
	setBool(&cfg.Aggregation.Enabled, "WHALEBOT_AGGREGATION_ENABLED")
	setInt(&cfg.Aggregation.WindowSeconds, "WHALEBOT_AGGREGATION_WINDOW_SECONDS")
	setBool(&cfg.Aggregation.CountUnknownSide, "WHALEBOT_AGGREGATION_COUNT_UNKNOWN_SIDE")

	// ── Sweep ──
	setBool(&cfg.Sweep.Enabled, "WHALEBOT_SWEEP_ENABLED")
	setFloat64(&cfg.Sweep.MinValue, "WHALEBOT_SWEEP_MIN_VALUE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WHALEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStringSlice(&cfg.Notify.TelegramChatIDs, "WHALEBOT_NOTIFY_TELEGRAM_CHAT_IDS")
	setStringSlice(&cfg.Notify.DiscordWebhookURLs, "WHALEBOT_NOTIFY_DISCORD_WEBHOOK_URLS")
	setDuration(&cfg.Notify.AttemptTimeout, "WHALEBOT_NOTIFY_ATTEMPT_TIMEOUT")
	setDuration(&cfg.Notify.DedupTTL, "WHALEBOT_NOTIFY_DEDUP_TTL")
	setInt(&cfg.Notify.RateLimitPerMinute, "WHALEBOT_NOTIFY_RATE_LIMIT_PER_MINUTE")

	// ── Market data ──
	setStr(&cfg.MarketData.LiveCoinWatchKey, "WHALEBOT_LIVECOINWATCH_API_KEY")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WHALEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WHALEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WHALEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WHALEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WHALEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WHALEBOT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WHALEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WHALEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WHALEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WHALEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WHALEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WHALEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WHALEBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WHALEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WHALEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WHALEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Images ──
	setBool(&cfg.Images.Enabled, "WHALEBOT_IMAGES_ENABLED")
	setStr(&cfg.Images.Endpoint, "WHALEBOT_IMAGES_ENDPOINT")
	setStr(&cfg.Images.Region, "WHALEBOT_IMAGES_REGION")
	setStr(&cfg.Images.Bucket, "WHALEBOT_IMAGES_BUCKET")
	setStr(&cfg.Images.Prefix, "WHALEBOT_IMAGES_PREFIX")
	setStr(&cfg.Images.AccessKey, "WHALEBOT_IMAGES_ACCESS_KEY")
	setStr(&cfg.Images.SecretKey, "WHALEBOT_IMAGES_SECRET_KEY")
	setBool(&cfg.Images.UseSSL, "WHALEBOT_IMAGES_USE_SSL")
	setBool(&cfg.Images.ForcePathStyle, "WHALEBOT_IMAGES_FORCE_PATH_STYLE")
	setDuration(&cfg.Images.CacheTTL, "WHALEBOT_IMAGES_CACHE_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WHALEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WHALEBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "WHALEBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "WHALEBOT_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Coin, "WHALEBOT_COIN")
	setStr(&cfg.Mode, "WHALEBOT_MODE")
	setStr(&cfg.LogLevel, "WHALEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
