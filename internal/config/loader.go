package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path on top of the built-in defaults, applies
// BROKER_* environment overrides, and returns the result. An empty path skips
// the file. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from any non-empty BROKER_*
// environment variable, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // BROKER_POSTGRES_DSN wins when both are set
	setStr(&cfg.Postgres.DSN, "BROKER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BROKER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BROKER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BROKER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BROKER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BROKER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BROKER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BROKER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BROKER_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.ConnectTimeout, "BROKER_POSTGRES_CONNECT_TIMEOUT")
	setBool(&cfg.Postgres.RunMigrations, "BROKER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BROKER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BROKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BROKER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BROKER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BROKER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BROKER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BROKER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.BarTTL, "BROKER_REDIS_BAR_TTL")
	setDuration(&cfg.Redis.InstrumentTTL, "BROKER_REDIS_INSTRUMENT_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BROKER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BROKER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BROKER_S3_REGION")
	setStr(&cfg.S3.Bucket, "BROKER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BROKER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BROKER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BROKER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BROKER_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.PartSizeMB, "BROKER_S3_PART_SIZE_MB")

	// ── Orders ──
	setDuration(&cfg.Orders.LockTTL, "BROKER_ORDERS_LOCK_TTL")
	setDuration(&cfg.Orders.LockWait, "BROKER_ORDERS_LOCK_WAIT")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "BROKER_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "BROKER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BROKER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BROKER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BROKER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BROKER_SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "BROKER_MODE")
	setStr(&cfg.LogLevel, "BROKER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present, non-empty and parses.
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
