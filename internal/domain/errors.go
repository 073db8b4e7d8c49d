package domain

import "errors"

var (
	// Generic store errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")

	// Validation errors, rejected before any mutation.
	ErrInvalidRelationalOp = errors.New("invalid relational operator")
	ErrInvalidBetAmount    = errors.New("invalid bet amount")
	ErrMaxPlayersReached   = errors.New("maximum number of players reached")
	ErrFieldTooLong        = errors.New("field exceeds maximum length")
	ErrDeckFull            = errors.New("deck is full")

	// State errors.
	ErrInvalidMarketStatus = errors.New("market is not in the correct status")
	ErrAlreadyClaimed      = errors.New("bet already claimed")
	ErrNotAWinner          = errors.New("not a winner")
	ErrNoFeesToClaim       = errors.New("no fees to claim")
	ErrPlayerAlreadyJoined = errors.New("player side already taken")
	ErrGameMarketMismatch  = errors.New("game is not paired with this market")

	// Authorization errors.
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnauthorizedResolver = errors.New("unauthorized resolver authority")
	ErrNotAssetOwner        = errors.New("caller does not own the asset")
	ErrInvalidPlayer        = errors.New("bet does not belong to caller")

	// Arithmetic and custody errors.
	ErrMathOverflow         = errors.New("math operation overflowed")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientTreasury = errors.New("insufficient treasury balance")

	// External computation errors.
	ErrAbortedComputation = errors.New("computation was aborted")
)
