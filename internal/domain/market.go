package domain

import "time"

// Status is the shared lifecycle state of a market and its treasury.
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusOngoing     Status = "ongoing"
	StatusResolvedYes Status = "resolved_yes"
	StatusResolvedNo  Status = "resolved_no"
	// StatusCompleted is declared for forward compatibility with a
	// post-settlement game-completion flow; no transition reaches it yet.
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusResolvedYes, StatusResolvedNo, StatusCancelled:
		return true
	}
	return false
}

// Resolved reports whether the market settled on an observed value.
func (s Status) Resolved() bool {
	return s == StatusResolvedYes || s == StatusResolvedNo
}

// Relational operators accepted in a market proposition.
const (
	OpGTE = ">="
	OpLTE = "<="
	OpGT  = ">"
	OpLT  = "<"
	OpEQ  = "=="
)

// Maximum lengths for market string fields.
const (
	MaxNameLen        = 32
	MaxDescriptionLen = 256
	MaxTokenLen       = 10
	MaxRelationalLen  = 5
)

// MarketRef is the composite identity of a market: the creating owner plus a
// caller-chosen market id, unique per owner.
type MarketRef struct {
	Owner    Address `json:"owner"`
	MarketID uint64  `json:"market_id"`
}

// Market is a single yes/no proposition about a future observable value.
type Market struct {
	Owner             Address `json:"owner"`
	MarketID          uint64  `json:"market_id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Token             string  `json:"token"` // reference token symbol
	MarketStart       uint64  `json:"market_start"`
	MarketEnd         uint64  `json:"market_end"`
	RelationalOp      string  `json:"relational_op"`
	TargetValue       uint64  `json:"target_value"`
	ResolveValue      uint64  `json:"resolve_value"` // meaningful only once resolved
	Status            Status  `json:"status"`
	RequiredBetAmount uint64  `json:"required_bet_amount"`
	MaxPlayerCount    uint64  `json:"max_player_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the market's composite identity.
func (m Market) Ref() MarketRef {
	return MarketRef{Owner: m.Owner, MarketID: m.MarketID}
}

// CreateMarketParams carries caller input for market creation.
type CreateMarketParams struct {
	MarketID          uint64 `json:"market_id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Token             string `json:"token"`
	MarketStart       uint64 `json:"market_start"`
	MarketEnd         uint64 `json:"market_end"`
	RelationalOp      string `json:"relational_op"`
	TargetValue       uint64 `json:"target_value"`
	RequiredBetAmount uint64 `json:"required_bet_amount"`
	MaxPlayerCount    uint64 `json:"max_player_count"`
}

// EvaluateOutcome applies the market's relational operator to a reported
// value and returns true when the proposition resolves "yes". An unknown
// operator is a hard error.
func EvaluateOutcome(op string, reported, target uint64) (bool, error) {
	switch op {
	case OpGTE:
		return reported >= target, nil
	case OpLTE:
		return reported <= target, nil
	case OpGT:
		return reported > target, nil
	case OpLT:
		return reported < target, nil
	case OpEQ:
		return reported == target, nil
	default:
		return false, ErrInvalidRelationalOp
	}
}
