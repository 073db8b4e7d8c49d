package domain

import (
	"context"
	"time"
)

// SignalBus provides pub/sub fan-out for ledger and game events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed advisory locks keyed by string.
type LockManager interface {
	// Acquire returns an unlock function on success or ErrLockHeld when the
	// lock is held by another party.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// AssetOracle verifies asset ownership against the external asset registry.
type AssetOracle interface {
	// Ownership returns the ownership-proof record for an asset. The deck
	// gate trusts the proof's Owner field and fails closed on any error.
	Ownership(ctx context.Context, assetID string) (OwnershipProof, error)
}

// Clock abstracts the wall-clock time source so tests can pin timestamps.
type Clock func() time.Time

// SystemClock reads the real wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}
