package domain

import "time"

// SideState tracks the two-phase lifecycle of one side of a game: a side is
// reserved at join submission time and populated only when the computation
// callback lands. A reserved-but-unpopulated side is the observable state
// left behind by an aborted or still-pending join job.
type SideState string

const (
	SideEmpty     SideState = "empty"
	SideReserved  SideState = "reserved"
	SidePopulated SideState = "populated"
)

const (
	// CardSlots is the number of card-ciphertext slots per game (3 per side).
	CardSlots = 6
	// CardSlotSize is the byte size of one card ciphertext.
	CardSlotSize = 32
)

// Ciphertext is one encrypted card value as returned by the
// confidential-computation service.
type Ciphertext [CardSlotSize]byte

// Game holds the confidential-computation-derived state of one card game,
// paired 1:1 with a market. The pairing is an explicit foreign key set at
// creation and validated on join. Card slots are mutated only by computation
// callbacks; player/deck assignment is mutated only by gated join requests.
type Game struct {
	GameID   uint64  `json:"game_id"`
	Owner    Address `json:"owner"`     // paired market owner
	MarketID uint64  `json:"market_id"` // paired market id

	PlayerYes     Address   `json:"player_yes"`
	PlayerYesDeck DeckRef   `json:"player_yes_deck"`
	YesState      SideState `json:"yes_state"`
	PlayerNo      Address   `json:"player_no"`
	PlayerNoDeck  DeckRef   `json:"player_no_deck"`
	NoState       SideState `json:"no_state"`

	// Slots 0..2 are the yes side, 3..5 the no side.
	Cards [CardSlots]Ciphertext `json:"cards"`

	CurrentTurn uint8    `json:"current_turn"`
	Result      uint8    `json:"result"`
	Nonce       [16]byte `json:"nonce"` // re-encryption continuity nonce

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarketRef returns the identity of the paired market.
func (g Game) MarketRef() MarketRef {
	return MarketRef{Owner: g.Owner, MarketID: g.MarketID}
}

// SideTaken reports whether the given side already has a player assigned
// (reserved or populated).
func (g Game) SideTaken(yes bool) bool {
	if yes {
		return g.YesState != SideEmpty
	}
	return g.NoState != SideEmpty
}
