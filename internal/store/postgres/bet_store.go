package postgres

import (
	"context"
	"fmt"

	"github.com/knostra/knostrad/internal/domain"
)

// BetStore implements domain.BetStore.
type BetStore struct {
	q querier
}

var _ domain.BetStore = (*BetStore)(nil)

func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (owner_addr, market_id, user_addr, bet_amount, choice, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query,
		b.Owner, b.MarketID, b.User, b.BetAmount, b.Choice, b.Claimed, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create bet %s/%d: %w", b.User, b.MarketID, mapErr(err))
	}
	return nil
}

func (s *BetStore) Get(ctx context.Context, ref domain.MarketRef, user domain.Address) (domain.Bet, error) {
	return s.get(ctx, ref, user, false)
}

func (s *BetStore) GetForUpdate(ctx context.Context, ref domain.MarketRef, user domain.Address) (domain.Bet, error) {
	return s.get(ctx, ref, user, true)
}

func (s *BetStore) get(ctx context.Context, ref domain.MarketRef, user domain.Address, forUpdate bool) (domain.Bet, error) {
	query := `
		SELECT owner_addr, market_id, user_addr, bet_amount, choice, claimed, created_at
		FROM bets WHERE owner_addr = $1 AND market_id = $2 AND user_addr = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var b domain.Bet
	err := s.q.QueryRow(ctx, query, ref.Owner, ref.MarketID, user).Scan(
		&b.Owner, &b.MarketID, &b.User, &b.BetAmount, &b.Choice, &b.Claimed, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s/%d: %w", user, ref.MarketID, mapErr(err))
	}
	return b, nil
}

func (s *BetStore) Update(ctx context.Context, b domain.Bet) error {
	const query = `
		UPDATE bets SET bet_amount = $4, choice = $5, claimed = $6
		WHERE owner_addr = $1 AND market_id = $2 AND user_addr = $3`

	tag, err := s.q.Exec(ctx, query,
		b.Owner, b.MarketID, b.User, b.BetAmount, b.Choice, b.Claimed,
	)
	if err != nil {
		return fmt.Errorf("postgres: update bet %s/%d: %w", b.User, b.MarketID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update bet %s/%d: %w", b.User, b.MarketID, domain.ErrNotFound)
	}
	return nil
}

func (s *BetStore) ListByMarket(ctx context.Context, ref domain.MarketRef, opts domain.ListOpts) ([]domain.Bet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT owner_addr, market_id, user_addr, bet_amount, choice, claimed, created_at
		FROM bets WHERE owner_addr = $1 AND market_id = $2
		ORDER BY created_at ASC, user_addr ASC
		LIMIT $3 OFFSET $4`

	rows, err := s.q.Query(ctx, query, ref.Owner, ref.MarketID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets %d: %w", ref.MarketID, mapErr(err))
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		if err := rows.Scan(&b.Owner, &b.MarketID, &b.User, &b.BetAmount, &b.Choice, &b.Claimed, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate bets: %w", err)
	}
	return bets, nil
}

func (s *BetStore) SumUnclaimed(ctx context.Context, ref domain.MarketRef) (uint64, error) {
	const query = `
		SELECT COALESCE(SUM(bet_amount), 0)
		FROM bets WHERE owner_addr = $1 AND market_id = $2 AND NOT claimed`

	var sum uint64
	if err := s.q.QueryRow(ctx, query, ref.Owner, ref.MarketID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum unclaimed %d: %w", ref.MarketID, mapErr(err))
	}
	return sum, nil
}
