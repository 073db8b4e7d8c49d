package postgres

import (
	"context"
	"fmt"

	"github.com/knostra/knostrad/internal/domain"
)

// DeckStore implements domain.DeckStore.
type DeckStore struct {
	q querier
}

var _ domain.DeckStore = (*DeckStore)(nil)

func (s *DeckStore) Create(ctx context.Context, d domain.Deck) error {
	const query = `
		INSERT INTO decks (owner_addr, seed, assets, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.q.Exec(ctx, query, d.Owner, d.Seed, d.Assets, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create deck %s/%d: %w", d.Owner, d.Seed, mapErr(err))
	}
	return nil
}

func (s *DeckStore) Get(ctx context.Context, ref domain.DeckRef) (domain.Deck, error) {
	const query = `
		SELECT owner_addr, seed, assets, created_at
		FROM decks WHERE owner_addr = $1 AND seed = $2`

	var d domain.Deck
	err := s.q.QueryRow(ctx, query, ref.Owner, ref.Seed).Scan(
		&d.Owner, &d.Seed, &d.Assets, &d.CreatedAt,
	)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("postgres: get deck %s/%d: %w", ref.Owner, ref.Seed, mapErr(err))
	}
	return d, nil
}
