package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists markets.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Get(ctx context.Context, ref MarketRef) (Market, error)
	// GetForUpdate reads the market and takes the per-record write lock that
	// serializes concurrent operations touching it. Only valid inside Atomic.
	GetForUpdate(ctx context.Context, ref MarketRef) (Market, error)
	Update(ctx context.Context, m Market) error
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
	// ListTerminal returns markets in a terminal state last updated strictly
	// before the cutoff; used by the settlement archiver.
	ListTerminal(ctx context.Context, before time.Time) ([]Market, error)
}

// TreasuryStore persists per-market escrow aggregates.
type TreasuryStore interface {
	Create(ctx context.Context, t Treasury) error
	Get(ctx context.Context, ref MarketRef) (Treasury, error)
	GetForUpdate(ctx context.Context, ref MarketRef) (Treasury, error)
	Update(ctx context.Context, t Treasury) error
}

// BetStore persists bet records.
type BetStore interface {
	Create(ctx context.Context, b Bet) error
	Get(ctx context.Context, ref MarketRef, user Address) (Bet, error)
	GetForUpdate(ctx context.Context, ref MarketRef, user Address) (Bet, error)
	Update(ctx context.Context, b Bet) error
	ListByMarket(ctx context.Context, ref MarketRef, opts ListOpts) ([]Bet, error)
	// SumUnclaimed returns the total stake still escrowed for a market; used
	// to audit the treasury invariant.
	SumUnclaimed(ctx context.Context, ref MarketRef) (uint64, error)
}

// DeckStore persists decks.
type DeckStore interface {
	Create(ctx context.Context, d Deck) error
	Get(ctx context.Context, ref DeckRef) (Deck, error)
}

// GameStore persists game projections.
type GameStore interface {
	Create(ctx context.Context, g Game) error
	Get(ctx context.Context, gameID uint64) (Game, error)
	GetForUpdate(ctx context.Context, gameID uint64) (Game, error)
	Update(ctx context.Context, g Game) error
}

// JobStore persists computation job records.
type JobStore interface {
	Create(ctx context.Context, j ComputeJob) error
	Get(ctx context.Context, jobID uint64) (ComputeJob, error)
	GetForUpdate(ctx context.Context, jobID uint64) (ComputeJob, error)
	Update(ctx context.Context, j ComputeJob) error
	ListPending(ctx context.Context, olderThan time.Time) ([]ComputeJob, error)
}

// AccountStore is the custody primitive of the host ledger: balances per
// address, with an atomic checked move between custodians.
type AccountStore interface {
	Balance(ctx context.Context, addr Address) (uint64, error)
	Credit(ctx context.Context, addr Address, amount uint64) error
	// Move debits from and credits to in one step. It fails closed with
	// ErrInsufficientFunds and never partially applies.
	Move(ctx context.Context, from, to Address, amount uint64) error
}

// Tx is the set of stores visible inside one atomic unit of work.
type Tx interface {
	Markets() MarketStore
	Treasuries() TreasuryStore
	Bets() BetStore
	Decks() DeckStore
	Games() GameStore
	Jobs() JobStore
	Accounts() AccountStore
}

// Store is the persistence root. Methods on the embedded Tx run as
// single-statement operations; Atomic runs fn inside one transaction that
// commits only if fn returns nil, so either every mutation in fn is applied
// or none is.
type Store interface {
	Tx
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
