package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/knostra/knostrad/internal/domain"
)

// AccountStore implements the custody balance primitive. Move relies on the
// balance >= 0 column constraint as a second line of defense behind the
// explicit conditional debit.
type AccountStore struct {
	q querier
}

var _ domain.AccountStore = (*AccountStore)(nil)

func (s *AccountStore) Balance(ctx context.Context, addr domain.Address) (uint64, error) {
	var balance uint64
	err := s.q.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE addr = $1`, addr,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", addr, err)
	}
	return balance, nil
}

func (s *AccountStore) Credit(ctx context.Context, addr domain.Address, amount uint64) error {
	const query = `
		INSERT INTO accounts (addr, balance) VALUES ($1, $2)
		ON CONFLICT (addr) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`

	if _, err := s.q.Exec(ctx, query, addr, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", addr, err)
	}
	return nil
}

func (s *AccountStore) Move(ctx context.Context, from, to domain.Address, amount uint64) error {
	// The conditional debit only matches when the balance covers the amount,
	// so an underfunded move affects zero rows and nothing is applied.
	const debit = `
		UPDATE accounts SET balance = balance - $2
		WHERE addr = $1 AND balance >= $2`

	tag, err := s.q.Exec(ctx, debit, from, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: debit %s amount %d: %w", from, amount, domain.ErrInsufficientFunds)
	}
	return s.Credit(ctx, to, amount)
}
