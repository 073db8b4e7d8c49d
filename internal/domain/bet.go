package domain

import "time"

// Bet is one participant's stake and side choice in a market. There is at
// most one bet per (market, user) pair; bets are mutated exactly once, when
// the claimed flag flips, and are never deleted.
type Bet struct {
	Owner    Address `json:"owner"`
	MarketID uint64  `json:"market_id"`
	User     Address `json:"user"`

	BetAmount uint64 `json:"bet_amount"`
	Choice    bool   `json:"choice"` // true = yes
	Claimed   bool   `json:"claimed"`

	CreatedAt time.Time `json:"created_at"`
}

// Side returns the textual side name for event payloads and logs.
func (b Bet) Side() string {
	if b.Choice {
		return "yes"
	}
	return "no"
}
