package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/knostra/knostrad/internal/domain"
)

// querier is the subset of pgx shared by a pool and a transaction, so every
// entity store works identically inside and outside Atomic.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL persistence root.
type Store struct {
	pool *pgxpool.Pool
	stores
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a Store over the client's pool.
func NewStore(client *Client) *Store {
	pool := client.Pool()
	return &Store{pool: pool, stores: stores{q: pool}}
}

// Atomic runs fn inside one database transaction. The Tx handed to fn issues
// every statement on that transaction, so GetForUpdate row locks hold until
// commit or rollback.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(stores{q: tx})
	})
}

// stores implements domain.Tx over one querier.
type stores struct {
	q querier
}

func (s stores) Markets() domain.MarketStore       { return &MarketStore{q: s.q} }
func (s stores) Treasuries() domain.TreasuryStore  { return &TreasuryStore{q: s.q} }
func (s stores) Bets() domain.BetStore             { return &BetStore{q: s.q} }
func (s stores) Decks() domain.DeckStore           { return &DeckStore{q: s.q} }
func (s stores) Games() domain.GameStore           { return &GameStore{q: s.q} }
func (s stores) Jobs() domain.JobStore             { return &JobStore{q: s.q} }
func (s stores) Accounts() domain.AccountStore     { return &AccountStore{q: s.q} }

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

// mapErr translates pgx-level errors into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%v: %w", pgErr.ConstraintName, domain.ErrAlreadyExists)
	}
	return err
}
