// Package ledger implements the conditional-settlement state machine: market
// lifecycle, bet custody, payout and refund settlement, and the deck/asset
// gate. Every operation is applied atomically against the records it touches
// via the store's transaction runner; validation, state, and authorization
// checks all run before the first mutation.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
)

// Service exposes the ledger operations. Resolver authority is recognized
// structurally against the address derived from the configured namespace.
type Service struct {
	store    domain.Store
	oracle   domain.AssetOracle
	bus      domain.SignalBus // optional
	resolver domain.Address
	clock    domain.Clock
	logger   *slog.Logger
}

// Config carries the Service dependencies.
type Config struct {
	Store     domain.Store
	Oracle    domain.AssetOracle
	Bus       domain.SignalBus
	Namespace string // program namespace for derived addresses
	Clock     domain.Clock
	Logger    *slog.Logger
}

// New creates a ledger Service.
func New(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = domain.SystemClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    cfg.Store,
		oracle:   cfg.Oracle,
		bus:      cfg.Bus,
		resolver: crypto.ResolverAddress(cfg.Namespace),
		clock:    clock,
		logger:   logger.With(slog.String("component", "ledger")),
	}
}

// ResolverAuthority returns the derived resolver address for this deployment.
func (s *Service) ResolverAuthority() domain.Address {
	return s.resolver
}

// GetMarket returns a market by identity.
func (s *Service) GetMarket(ctx context.Context, ref domain.MarketRef) (domain.Market, error) {
	return s.store.Markets().Get(ctx, normalizeRef(ref))
}

// GetTreasury returns a market's escrow aggregate.
func (s *Service) GetTreasury(ctx context.Context, ref domain.MarketRef) (domain.Treasury, error) {
	return s.store.Treasuries().Get(ctx, normalizeRef(ref))
}

// GetBet returns one participant's bet record.
func (s *Service) GetBet(ctx context.Context, ref domain.MarketRef, user domain.Address) (domain.Bet, error) {
	return s.store.Bets().Get(ctx, normalizeRef(ref), domain.NormalizeAddress(user))
}

// ListMarkets returns markets with pagination.
func (s *Service) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.store.Markets().List(ctx, opts)
}

// CountMarkets returns the total number of markets.
func (s *Service) CountMarkets(ctx context.Context) (int64, error) {
	return s.store.Markets().Count(ctx)
}

// ListBets returns the bet records for a market.
func (s *Service) ListBets(ctx context.Context, ref domain.MarketRef, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.store.Bets().ListByMarket(ctx, normalizeRef(ref), opts)
}

// Balance returns the custody balance of an address.
func (s *Service) Balance(ctx context.Context, addr domain.Address) (uint64, error) {
	return s.store.Accounts().Balance(ctx, domain.NormalizeAddress(addr))
}

// Deposit credits an address's custody balance. This is the on-ramp used by
// dev deployments and tests; production custody funding arrives through the
// host ledger.
func (s *Service) Deposit(ctx context.Context, addr domain.Address, amount uint64) error {
	return s.store.Accounts().Credit(ctx, domain.NormalizeAddress(addr), amount)
}

// publish emits an event on the signal bus; bus errors are logged, never
// propagated into the ledger operation that already committed.
func (s *Service) publish(ctx context.Context, channel string, ev domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

func normalizeRef(ref domain.MarketRef) domain.MarketRef {
	ref.Owner = domain.NormalizeAddress(ref.Owner)
	return ref
}
