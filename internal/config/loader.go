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
// built-in defaults, applies KNOSTRA_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. An empty path skips the
// TOML file and uses defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known KNOSTRA_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "KNOSTRA_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "KNOSTRA_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "KNOSTRA_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "KNOSTRA_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "KNOSTRA_SERVER_RATE_LIMIT_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KNOSTRA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KNOSTRA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KNOSTRA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KNOSTRA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KNOSTRA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KNOSTRA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KNOSTRA_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KNOSTRA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KNOSTRA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KNOSTRA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KNOSTRA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KNOSTRA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KNOSTRA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KNOSTRA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KNOSTRA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KNOSTRA_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "KNOSTRA_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "KNOSTRA_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "KNOSTRA_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "KNOSTRA_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "KNOSTRA_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "KNOSTRA_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "KNOSTRA_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "KNOSTRA_ARCHIVE_FORCE_PATH_STYLE")
	setDuration(&cfg.Archive.Interval, "KNOSTRA_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.MinAge, "KNOSTRA_ARCHIVE_MIN_AGE")

	// ── Compute ──
	setStr(&cfg.Compute.Endpoint, "KNOSTRA_COMPUTE_ENDPOINT")
	setStr(&cfg.Compute.APIKey, "KNOSTRA_COMPUTE_API_KEY")
	setStr(&cfg.Compute.CallbackURL, "KNOSTRA_COMPUTE_CALLBACK_URL")
	setStr(&cfg.Compute.CallbackSecret, "KNOSTRA_COMPUTE_CALLBACK_SECRET")
	setStr(&cfg.Compute.ClusterKey, "KNOSTRA_COMPUTE_CLUSTER_KEY")

	// ── Assets ──
	setStr(&cfg.Assets.RegistryURL, "KNOSTRA_ASSETS_REGISTRY_URL")
	setStr(&cfg.Assets.APIKey, "KNOSTRA_ASSETS_API_KEY")

	// ── Ledger ──
	setStr(&cfg.Ledger.ResolverNamespace, "KNOSTRA_LEDGER_RESOLVER_NAMESPACE")

	// ── Top-level ──
	setStr(&cfg.Mode, "KNOSTRA_MODE")
	setStr(&cfg.LogLevel, "KNOSTRA_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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
