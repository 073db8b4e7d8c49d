package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knostra/knostrad/internal/archive"
	"github.com/knostra/knostrad/internal/compute"
	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/ledger"
	"github.com/knostra/knostrad/internal/server"
	"github.com/knostra/knostrad/internal/server/handler"
	"github.com/knostra/knostrad/internal/server/ws"
)

// sweepInterval is how often stale pending compute jobs are reported, and
// sweepAge is how long a job must sit pending before it counts as stale.
const (
	sweepInterval = 5 * time.Minute
	sweepAge      = 10 * time.Minute
)

// ServeMode runs the production stack: Postgres-backed store, Redis
// coordination, the external computation service, and the HTTP server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	return a.runNode(ctx, deps)
}

// DevMode runs the single-process development stack: in-memory store and the
// in-process computation cluster. On shutdown it waits for in-flight
// computations to drain.
func (a *App) DevMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting dev mode")
	err := a.runNode(ctx, deps)
	if deps.Cluster != nil {
		deps.Cluster.Wait()
	}
	return err
}

// runNode builds the services and handlers over the wired dependencies and
// runs the server goroutines until the context is cancelled.
func (a *App) runNode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	ledgerSvc := ledger.New(ledger.Config{
		Store:     deps.Store,
		Oracle:    deps.Oracle,
		Bus:       deps.Bus,
		Namespace: a.cfg.Ledger.ResolverNamespace,
		Logger:    a.logger,
	})
	orch := compute.NewOrchestrator(compute.OrchestratorConfig{
		Store:       deps.Store,
		Client:      deps.ComputeClient,
		Signer:      crypto.NewCallbackSigner(a.cfg.Compute.CallbackSecret),
		Locks:       deps.Locks,
		Bus:         deps.Bus,
		Logger:      a.logger,
		CallbackURL: a.cfg.Compute.CallbackURL,
	})

	// The in-process cluster delivers results straight into the
	// orchestrator instead of over HTTP.
	if deps.Cluster != nil {
		deps.Cluster.SetHandler(func(ctx context.Context, body []byte, sig string) error {
			_, err := orch.HandleCallback(ctx, body, sig)
			return err
		})
	}

	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, a.logger, a.cfg.Mode)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Pingers),
		Markets:  handler.NewMarketHandler(ledgerSvc, a.logger),
		Bets:     handler.NewBetHandler(ledgerSvc, a.logger),
		Decks:    handler.NewDeckHandler(ledgerSvc, a.logger),
		Games:    handler.NewGameHandler(orch, a.logger),
		Accounts: handler.NewAccountHandler(ledgerSvc, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Settlement archiver.
	if deps.Archive != nil {
		archiver := archive.NewArchiver(deps.Store, deps.Archive, a.cfg.Archive.MinAge.Duration, nil, a.logger)
		g.Go(func() error {
			return archiver.Run(ctx, a.cfg.Archive.Interval.Duration)
		})
	}

	// Stale-job sweep: report compute jobs whose result never came back.
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				stale, err := orch.SweepPending(ctx, sweepAge)
				if err != nil {
					a.logger.WarnContext(ctx, "pending-job sweep failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if len(stale) > 0 {
					a.logger.WarnContext(ctx, "stale compute jobs pending",
						slog.Int("count", len(stale)),
					)
				}
			}
		}
	})

	return g.Wait()
}
