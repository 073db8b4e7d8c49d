package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/knostra/knostrad/internal/domain"
)

// CreateDeck records an immutable deck of up to MaxDeckSize assets. Every
// asset is verified against the ownership oracle before anything is written;
// a single failed proof rejects the whole deck.
func (s *Service) CreateDeck(ctx context.Context, owner domain.Address, seed uint64, assetIDs []string) (domain.Deck, error) {
	owner = domain.NormalizeAddress(owner)
	if len(assetIDs) > domain.MaxDeckSize {
		return domain.Deck{}, fmt.Errorf("ledger: create deck: %d assets: %w", len(assetIDs), domain.ErrDeckFull)
	}

	for _, id := range assetIDs {
		proof, err := s.oracle.Ownership(ctx, id)
		if err != nil {
			return domain.Deck{}, fmt.Errorf("ledger: create deck: verify asset %s: %w", id, err)
		}
		if domain.NormalizeAddress(proof.Owner) != owner {
			return domain.Deck{}, fmt.Errorf("ledger: create deck: asset %s: %w", id, domain.ErrNotAssetOwner)
		}
	}

	deck := domain.Deck{
		Owner:     owner,
		Seed:      seed,
		Assets:    assetIDs,
		CreatedAt: s.clock(),
	}
	if err := s.store.Decks().Create(ctx, deck); err != nil {
		return domain.Deck{}, fmt.Errorf("ledger: create deck: %w", err)
	}

	s.logger.InfoContext(ctx, "deck created",
		slog.String("owner", string(owner)),
		slog.Uint64("seed", seed),
		slog.Int("assets", len(assetIDs)),
	)
	return deck, nil
}

// GetDeck returns a deck by identity.
func (s *Service) GetDeck(ctx context.Context, ref domain.DeckRef) (domain.Deck, error) {
	ref.Owner = domain.NormalizeAddress(ref.Owner)
	return s.store.Decks().Get(ctx, ref)
}

// AuditTreasury recomputes the escrow invariant for one market: the treasury
// total must equal the sum of unclaimed stakes. Used by tests and the
// archiver's consistency check.
func (s *Service) AuditTreasury(ctx context.Context, ref domain.MarketRef) error {
	ref = normalizeRef(ref)
	treasury, err := s.store.Treasuries().Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("ledger: audit market %d: %w", ref.MarketID, err)
	}
	sum, err := s.store.Bets().SumUnclaimed(ctx, ref)
	if err != nil {
		return fmt.Errorf("ledger: audit market %d: %w", ref.MarketID, err)
	}
	// Once resolved, forfeited losing stakes fund winner payouts while the
	// losing bets stay unclaimed, so the equality only binds before
	// resolution and on cancelled markets.
	if treasury.Status.Resolved() {
		return nil
	}
	if treasury.TotalAmount != sum {
		return fmt.Errorf("ledger: audit market %d: escrow %d != unclaimed stake %d: %w",
			ref.MarketID, treasury.TotalAmount, sum, errInvariant)
	}
	return nil
}

var errInvariant = errors.New("treasury invariant violated")
