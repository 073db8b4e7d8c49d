package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/knostra/knostrad/internal/domain"
)

// MarketStore implements domain.MarketStore.
type MarketStore struct {
	q querier
}

var _ domain.MarketStore = (*MarketStore)(nil)

const marketColumns = `
	owner_addr, market_id, name, description, token,
	market_start, market_end, relational_op, target_value, resolve_value,
	status, required_bet_amount, max_player_count, created_at, updated_at`

func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			owner_addr, market_id, name, description, token,
			market_start, market_end, relational_op, target_value, resolve_value,
			status, required_bet_amount, max_player_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15
		)`

	_, err := s.q.Exec(ctx, query,
		m.Owner, m.MarketID, m.Name, m.Description, m.Token,
		m.MarketStart, m.MarketEnd, m.RelationalOp, m.TargetValue, m.ResolveValue,
		string(m.Status), m.RequiredBetAmount, m.MaxPlayerCount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %d: %w", m.MarketID, mapErr(err))
	}
	return nil
}

func (s *MarketStore) Get(ctx context.Context, ref domain.MarketRef) (domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE owner_addr = $1 AND market_id = $2`
	return s.get(ctx, query, ref)
}

func (s *MarketStore) GetForUpdate(ctx context.Context, ref domain.MarketRef) (domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE owner_addr = $1 AND market_id = $2 FOR UPDATE`
	return s.get(ctx, query, ref)
}

func (s *MarketStore) get(ctx context.Context, query string, ref domain.MarketRef) (domain.Market, error) {
	row := s.q.QueryRow(ctx, query, ref.Owner, ref.MarketID)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", ref.MarketID, mapErr(err))
	}
	return m, nil
}

func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			name = $3, description = $4, token = $5,
			market_start = $6, market_end = $7, relational_op = $8,
			target_value = $9, resolve_value = $10, status = $11,
			required_bet_amount = $12, max_player_count = $13, updated_at = $14
		WHERE owner_addr = $1 AND market_id = $2`

	tag, err := s.q.Exec(ctx, query,
		m.Owner, m.MarketID, m.Name, m.Description, m.Token,
		m.MarketStart, m.MarketEnd, m.RelationalOp,
		m.TargetValue, m.ResolveValue, string(m.Status),
		m.RequiredBetAmount, m.MaxPlayerCount, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %d: %w", m.MarketID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update market %d: %w", m.MarketID, domain.ErrNotFound)
	}
	return nil
}

func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + marketColumns + `
		FROM markets ORDER BY created_at DESC, market_id DESC LIMIT $1 OFFSET $2`

	rows, err := s.q.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", mapErr(err))
	}
	defer rows.Close()
	return collectMarkets(rows)
}

func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", mapErr(err))
	}
	return n, nil
}

func (s *MarketStore) ListTerminal(ctx context.Context, before time.Time) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + `
		FROM markets
		WHERE status IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at ASC`

	rows, err := s.q.Query(ctx, query,
		string(domain.StatusResolvedYes), string(domain.StatusResolvedNo),
		string(domain.StatusCancelled), before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal markets: %w", mapErr(err))
	}
	defer rows.Close()
	return collectMarkets(rows)
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m      domain.Market
		status string
	)
	err := row.Scan(
		&m.Owner, &m.MarketID, &m.Name, &m.Description, &m.Token,
		&m.MarketStart, &m.MarketEnd, &m.RelationalOp, &m.TargetValue, &m.ResolveValue,
		&status, &m.RequiredBetAmount, &m.MaxPlayerCount, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.Status(status)
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}
