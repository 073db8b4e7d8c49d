package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/knostra/knostrad/internal/server/handler"
	"github.com/knostra/knostrad/internal/server/middleware"
	"github.com/knostra/knostrad/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int    // requests per window; 0 disables rate limiting
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Markets  *handler.MarketHandler
	Bets     *handler.BetHandler
	Decks    *handler.DeckHandler
	Games    *handler.GameHandler
	Accounts *handler.AccountHandler
}

// Server is the HTTP + WebSocket API server for the settlement node.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// wires up the middleware chain (auth, logging, CORS, rate limiting).
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter middleware.Limiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{owner}/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{owner}/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/markets/{owner}/{id}/cancel", handlers.Markets.Cancel)
	mux.HandleFunc("GET /api/markets/{owner}/{id}/treasury", handlers.Markets.GetTreasury)

	// Bets and claims.
	mux.HandleFunc("GET /api/markets/{owner}/{id}/bets", handlers.Bets.ListBets)
	mux.HandleFunc("POST /api/markets/{owner}/{id}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{owner}/{id}/bets/{user}", handlers.Bets.GetBet)
	mux.HandleFunc("POST /api/markets/{owner}/{id}/claim", handlers.Bets.Claim)
	mux.HandleFunc("POST /api/markets/{owner}/{id}/fees/claim", handlers.Bets.ClaimFees)

	// Decks.
	mux.HandleFunc("POST /api/decks", handlers.Decks.CreateDeck)
	mux.HandleFunc("GET /api/decks/{owner}/{seed}", handlers.Decks.GetDeck)

	// Games and compute jobs.
	mux.HandleFunc("POST /api/games", handlers.Games.InitGame)
	mux.HandleFunc("GET /api/games/{id}", handlers.Games.GetGame)
	mux.HandleFunc("POST /api/games/{id}/join", handlers.Games.JoinGame)
	mux.HandleFunc("GET /api/jobs/{id}", handlers.Games.GetJob)

	// Computation service callback. Authenticated by HMAC signature, so it
	// is on the auth middleware's skip list.
	mux.HandleFunc("POST /api/compute/callback", handlers.Games.Callback)

	// Accounts.
	mux.HandleFunc("GET /api/accounts/{addr}", handlers.Accounts.GetBalance)
	mux.HandleFunc("POST /api/accounts/{addr}/deposit", handlers.Accounts.Deposit)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/api/compute/callback")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
