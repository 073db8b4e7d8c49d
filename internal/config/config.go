// Package config defines the top-level configuration for knostrad and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by KNOSTRA_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Archive  ArchiveConfig  `toml:"archive"`
	Compute  ComputeConfig  `toml:"compute"`
	Assets   AssetsConfig   `toml:"assets"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is requests per caller per window; zero disables limiting.
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig holds the settlement archiver's S3 parameters and schedule.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Interval       duration `toml:"interval"`
	MinAge         duration `toml:"min_age"`
}

// ComputeConfig holds the confidential-computation service parameters.
type ComputeConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	CallbackURL    string `toml:"callback_url"`
	CallbackSecret string `toml:"callback_secret"`
	// ClusterKey seeds the in-process dev cluster's sealing key.
	ClusterKey string `toml:"cluster_key"`
}

// AssetsConfig holds the asset-ownership registry parameters.
type AssetsConfig struct {
	RegistryURL string `toml:"registry_url"`
	APIKey      string `toml:"api_key"`
}

// LedgerConfig holds ledger-level parameters.
type LedgerConfig struct {
	// ResolverNamespace scopes the derived resolver-authority and fee-pool
	// addresses for this deployment.
	ResolverNamespace string `toml:"resolver_namespace"`
}

// duration wraps time.Duration for TOML string decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
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
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       0,
			RateLimitWindow: duration{time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "knostra",
			User:          "knostra",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Region:   "us-east-1",
			Interval: duration{time.Hour},
			MinAge:   duration{24 * time.Hour},
		},
		Compute: ComputeConfig{
			CallbackURL: "http://localhost:8080/api/compute/callback",
			ClusterKey:  "dev-cluster",
		},
		Ledger: LedgerConfig{
			ResolverNamespace: "knostra",
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"dev":   true,
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, dev)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "server: rate_limit_window must be positive when rate_limit is set")
	}

	if strings.ToLower(c.Mode) == "serve" {
		if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
			errs = append(errs, "postgres: either dsn or host/database/user must be set for mode serve")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr is required for mode serve")
		}
		if c.Compute.Endpoint == "" {
			errs = append(errs, "compute: endpoint is required for mode serve")
		}
		if c.Assets.RegistryURL == "" {
			errs = append(errs, "assets: registry_url is required for mode serve")
		}
	}

	if c.Compute.CallbackURL == "" {
		errs = append(errs, "compute: callback_url is required")
	}
	if c.Compute.CallbackSecret == "" {
		errs = append(errs, "compute: callback_secret is required")
	}
	if c.Ledger.ResolverNamespace == "" {
		errs = append(errs, "ledger: resolver_namespace is required")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket is required when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region is required when enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
