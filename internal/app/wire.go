package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knostra/knostrad/internal/archive"
	"github.com/knostra/knostrad/internal/assets"
	"github.com/knostra/knostrad/internal/cache/redis"
	"github.com/knostra/knostrad/internal/compute"
	"github.com/knostra/knostrad/internal/compute/cluster"
	"github.com/knostra/knostrad/internal/config"
	"github.com/knostra/knostrad/internal/domain"
	"github.com/knostra/knostrad/internal/server/handler"
	"github.com/knostra/knostrad/internal/server/middleware"
	"github.com/knostra/knostrad/internal/store/memory"
	"github.com/knostra/knostrad/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store  domain.Store
	Oracle domain.AssetOracle

	// Coordination. All three are nil in dev mode.
	Bus     domain.SignalBus
	Locks   domain.LockManager
	Limiter middleware.Limiter

	// Compute backend: an HTTP client in serve mode, the in-process cluster
	// in dev mode.
	ComputeClient compute.Client
	Cluster       *cluster.Cluster

	// Archive is nil unless the settlement archiver is enabled.
	Archive *archive.Client

	// Pingers feed the health endpoint's per-dependency checks.
	Pingers map[string]handler.Pinger
}

// pingerFunc adapts a plain function to handler.Pinger.
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs the concrete dependency implementations for the configured
// mode and returns them together with a cleanup function that should be
// called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Pingers: make(map[string]handler.Pinger),
	}

	if strings.ToLower(cfg.Mode) == "dev" {
		wireDev(cfg, logger, deps)
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
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
	deps.Store = postgres.NewStore(pgClient)
	deps.Pingers["postgres"] = pgClient

	// --- Redis ---
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

	deps.Bus = redis.NewSignalBus(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.Pingers["redis"] = redisClient

	// --- Confidential-computation service ---
	deps.ComputeClient = compute.NewHTTPClient(cfg.Compute.Endpoint, cfg.Compute.APIKey)

	// --- Asset registry ---
	deps.Oracle = assets.NewHTTPOracle(cfg.Assets.RegistryURL, cfg.Assets.APIKey)

	// --- Settlement archive ---
	if cfg.Archive.Enabled {
		s3Client, err := archive.NewClient(ctx, archive.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: archive: %w", err)
		}
		deps.Archive = s3Client
		deps.Pingers["archive"] = pingerFunc(s3Client.Health)
	}

	return deps, cleanup, nil
}

// wireDev builds the single-process development stack: an in-memory store
// and an in-process computation cluster, with no external services.
func wireDev(cfg *config.Config, logger *slog.Logger, deps *Dependencies) {
	store := memory.NewStore()
	deps.Store = store

	clusterKey := cluster.DeriveKey(cfg.Compute.ClusterKey)
	c := cluster.New(clusterKey, cfg.Compute.CallbackSecret, store.Games(), logger)
	deps.Cluster = c
	deps.ComputeClient = c

	if cfg.Assets.RegistryURL != "" {
		deps.Oracle = assets.NewHTTPOracle(cfg.Assets.RegistryURL, cfg.Assets.APIKey)
	} else {
		// Without a registry the deck gate rejects everything; dev setups
		// that need decks point KNOSTRA_ASSETS_REGISTRY_URL at a stub.
		deps.Oracle = assets.NewStaticOracle(nil)
	}
}
