package domain

// Pub/sub channels for ledger and game events.
const (
	ChannelMarkets = "ch:market"
	ChannelBets    = "ch:bet"
	ChannelGames   = "ch:game"
)

// Event types carried on the signal bus.
const (
	EventMarketCreated   = "market_created"
	EventMarketStarted   = "market_started"
	EventMarketResolved  = "market_resolved"
	EventMarketCancelled = "market_cancelled"
	EventBetPlaced       = "bet_placed"
	EventClaimPaid       = "claim_paid"
	EventFeesClaimed     = "fees_claimed"
	EventGameInitialized = "game_initialized"
	EventGameJoined      = "game_joined"
	EventGameAborted     = "game_aborted"
)

// Event is the JSON envelope published on the signal bus.
type Event struct {
	Type     string         `json:"type"`
	Market   *MarketRef     `json:"market,omitempty"`
	GameID   uint64         `json:"game_id,omitempty"`
	User     Address        `json:"user,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
}
