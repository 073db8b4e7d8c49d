package postgres

import (
	"context"
	"fmt"

	"github.com/knostra/knostrad/internal/domain"
)

// GameStore implements domain.GameStore. Card slots are stored as one
// fixed-length byte column; the nonce likewise.
type GameStore struct {
	q querier
}

var _ domain.GameStore = (*GameStore)(nil)

func (s *GameStore) Create(ctx context.Context, g domain.Game) error {
	const query = `
		INSERT INTO games (
			game_id, owner_addr, market_id,
			player_yes, player_yes_deck_owner, player_yes_deck_seed, yes_state,
			player_no, player_no_deck_owner, player_no_deck_seed, no_state,
			cards, current_turn, result, nonce, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17
		)`

	_, err := s.q.Exec(ctx, query,
		g.GameID, g.Owner, g.MarketID,
		g.PlayerYes, g.PlayerYesDeck.Owner, g.PlayerYesDeck.Seed, string(g.YesState),
		g.PlayerNo, g.PlayerNoDeck.Owner, g.PlayerNoDeck.Seed, string(g.NoState),
		packCards(g.Cards), g.CurrentTurn, g.Result, g.Nonce[:], g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create game %d: %w", g.GameID, mapErr(err))
	}
	return nil
}

func (s *GameStore) Get(ctx context.Context, gameID uint64) (domain.Game, error) {
	return s.get(ctx, gameID, false)
}

func (s *GameStore) GetForUpdate(ctx context.Context, gameID uint64) (domain.Game, error) {
	return s.get(ctx, gameID, true)
}

func (s *GameStore) get(ctx context.Context, gameID uint64, forUpdate bool) (domain.Game, error) {
	query := `
		SELECT game_id, owner_addr, market_id,
		       player_yes, player_yes_deck_owner, player_yes_deck_seed, yes_state,
		       player_no, player_no_deck_owner, player_no_deck_seed, no_state,
		       cards, current_turn, result, nonce, created_at, updated_at
		FROM games WHERE game_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		g          domain.Game
		yesState   string
		noState    string
		cardsRaw   []byte
		nonceRaw   []byte
	)
	err := s.q.QueryRow(ctx, query, gameID).Scan(
		&g.GameID, &g.Owner, &g.MarketID,
		&g.PlayerYes, &g.PlayerYesDeck.Owner, &g.PlayerYesDeck.Seed, &yesState,
		&g.PlayerNo, &g.PlayerNoDeck.Owner, &g.PlayerNoDeck.Seed, &noState,
		&cardsRaw, &g.CurrentTurn, &g.Result, &nonceRaw, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return domain.Game{}, fmt.Errorf("postgres: get game %d: %w", gameID, mapErr(err))
	}
	g.YesState = domain.SideState(yesState)
	g.NoState = domain.SideState(noState)
	if err := unpackCards(cardsRaw, &g.Cards); err != nil {
		return domain.Game{}, fmt.Errorf("postgres: get game %d: %w", gameID, err)
	}
	copy(g.Nonce[:], nonceRaw)
	return g, nil
}

func (s *GameStore) Update(ctx context.Context, g domain.Game) error {
	const query = `
		UPDATE games SET
			player_yes = $2, player_yes_deck_owner = $3, player_yes_deck_seed = $4, yes_state = $5,
			player_no = $6, player_no_deck_owner = $7, player_no_deck_seed = $8, no_state = $9,
			cards = $10, current_turn = $11, result = $12, nonce = $13, updated_at = $14
		WHERE game_id = $1`

	tag, err := s.q.Exec(ctx, query,
		g.GameID,
		g.PlayerYes, g.PlayerYesDeck.Owner, g.PlayerYesDeck.Seed, string(g.YesState),
		g.PlayerNo, g.PlayerNoDeck.Owner, g.PlayerNoDeck.Seed, string(g.NoState),
		packCards(g.Cards), g.CurrentTurn, g.Result, g.Nonce[:], g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update game %d: %w", g.GameID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update game %d: %w", g.GameID, domain.ErrNotFound)
	}
	return nil
}

func packCards(cards [domain.CardSlots]domain.Ciphertext) []byte {
	out := make([]byte, 0, domain.CardSlots*domain.CardSlotSize)
	for i := range cards {
		out = append(out, cards[i][:]...)
	}
	return out
}

func unpackCards(raw []byte, cards *[domain.CardSlots]domain.Ciphertext) error {
	if len(raw) != domain.CardSlots*domain.CardSlotSize {
		return fmt.Errorf("card column holds %d bytes, want %d", len(raw), domain.CardSlots*domain.CardSlotSize)
	}
	for i := range cards {
		copy(cards[i][:], raw[i*domain.CardSlotSize:])
	}
	return nil
}
