package postgres

import (
	"context"
	"fmt"

	"github.com/knostra/knostrad/internal/domain"
)

// TreasuryStore implements domain.TreasuryStore.
type TreasuryStore struct {
	q querier
}

var _ domain.TreasuryStore = (*TreasuryStore)(nil)

func (s *TreasuryStore) Create(ctx context.Context, t domain.Treasury) error {
	const query = `
		INSERT INTO treasuries (
			owner_addr, market_id, creator,
			total_amount, fee_amount, creator_fee_amount,
			yes_count, no_count, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.q.Exec(ctx, query,
		t.Owner, t.MarketID, t.Creator,
		t.TotalAmount, t.FeeAmount, t.CreatorFeeAmount,
		t.YesCount, t.NoCount, string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: create treasury %d: %w", t.MarketID, mapErr(err))
	}
	return nil
}

func (s *TreasuryStore) Get(ctx context.Context, ref domain.MarketRef) (domain.Treasury, error) {
	return s.get(ctx, ref, false)
}

func (s *TreasuryStore) GetForUpdate(ctx context.Context, ref domain.MarketRef) (domain.Treasury, error) {
	return s.get(ctx, ref, true)
}

func (s *TreasuryStore) get(ctx context.Context, ref domain.MarketRef, forUpdate bool) (domain.Treasury, error) {
	query := `
		SELECT owner_addr, market_id, creator,
		       total_amount, fee_amount, creator_fee_amount,
		       yes_count, no_count, status
		FROM treasuries WHERE owner_addr = $1 AND market_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		t      domain.Treasury
		status string
	)
	err := s.q.QueryRow(ctx, query, ref.Owner, ref.MarketID).Scan(
		&t.Owner, &t.MarketID, &t.Creator,
		&t.TotalAmount, &t.FeeAmount, &t.CreatorFeeAmount,
		&t.YesCount, &t.NoCount, &status,
	)
	if err != nil {
		return domain.Treasury{}, fmt.Errorf("postgres: get treasury %d: %w", ref.MarketID, mapErr(err))
	}
	t.Status = domain.Status(status)
	return t, nil
}

func (s *TreasuryStore) Update(ctx context.Context, t domain.Treasury) error {
	const query = `
		UPDATE treasuries SET
			creator = $3, total_amount = $4, fee_amount = $5,
			creator_fee_amount = $6, yes_count = $7, no_count = $8, status = $9
		WHERE owner_addr = $1 AND market_id = $2`

	tag, err := s.q.Exec(ctx, query,
		t.Owner, t.MarketID, t.Creator,
		t.TotalAmount, t.FeeAmount, t.CreatorFeeAmount,
		t.YesCount, t.NoCount, string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update treasury %d: %w", t.MarketID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update treasury %d: %w", t.MarketID, domain.ErrNotFound)
	}
	return nil
}
