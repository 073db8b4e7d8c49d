package domain

import "time"

// MaxDeckSize is the maximum number of assets a deck may reference.
const MaxDeckSize = 20

// DeckRef identifies a deck by its creating owner and a caller-chosen seed.
type DeckRef struct {
	Owner Address `json:"owner"`
	Seed  uint64  `json:"seed"`
}

// Deck is an ordered list of asset identifiers verified to belong to Owner at
// creation time. Decks are immutable once created.
type Deck struct {
	Owner  Address  `json:"owner"`
	Seed   uint64   `json:"seed"`
	Assets []string `json:"assets"`

	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the deck's composite identity.
func (d Deck) Ref() DeckRef {
	return DeckRef{Owner: d.Owner, Seed: d.Seed}
}

// OwnershipProof is the record the asset-ownership oracle returns for one
// asset. The deck gate trusts the Owner field.
type OwnershipProof struct {
	AssetID string  `json:"asset_id"`
	Owner   Address `json:"owner"`
}
