// Package compute orchestrates confidential-computation jobs: typed argument
// lists, submission to the external service, and exactly-once application of
// signed completion callbacks.
package compute

import (
	"encoding/hex"

	"github.com/knostra/knostrad/internal/domain"
)

// ArgKind discriminates the typed arguments of a computation submission.
type ArgKind string

const (
	ArgPublicU8   ArgKind = "public_u8"
	ArgPublicU64  ArgKind = "public_u64"
	ArgPublicU128 ArgKind = "public_u128"
	ArgPublicKey  ArgKind = "public_key"
	ArgCiphertext ArgKind = "ciphertext"
	// ArgAccountRef points the circuit at a region of a persisted record
	// that the callback will rewrite.
	ArgAccountRef ArgKind = "account_ref"
)

// Argument is one typed input to a computation. Scalar and byte arguments
// carry a hex payload; account references carry the record coordinates.
type Argument struct {
	Kind   ArgKind `json:"kind"`
	Value  string  `json:"value,omitempty"`
	GameID uint64  `json:"game_id,omitempty"`
	Offset uint32  `json:"offset,omitempty"`
	Length uint32  `json:"length,omitempty"`
}

// PublicU8 wraps a plaintext byte argument.
func PublicU8(v uint8) Argument {
	return Argument{Kind: ArgPublicU8, Value: hex.EncodeToString([]byte{v})}
}

// PublicU128 wraps a plaintext 128-bit argument (little-endian bytes).
func PublicU128(v [16]byte) Argument {
	return Argument{Kind: ArgPublicU128, Value: hex.EncodeToString(v[:])}
}

// PublicKey wraps a participant address argument.
func PublicKey(a domain.Address) Argument {
	return Argument{Kind: ArgPublicKey, Value: string(domain.NormalizeAddress(a))}
}

// EncryptedCard wraps one card ciphertext argument.
func EncryptedCard(ct domain.Ciphertext) Argument {
	return Argument{Kind: ArgCiphertext, Value: hex.EncodeToString(ct[:])}
}

// GameSlotsRef references the card-slot region of a game record.
func GameSlotsRef(gameID uint64) Argument {
	return Argument{
		Kind:   ArgAccountRef,
		GameID: gameID,
		Offset: 0,
		Length: domain.CardSlots * domain.CardSlotSize,
	}
}

// Submission is one job handed to the computation service.
type Submission struct {
	JobID       uint64         `json:"job_id"`
	Kind        domain.JobKind `json:"kind"`
	GameID      uint64         `json:"game_id"`
	Args        []Argument     `json:"args"`
	CallbackURL string         `json:"callback_url"`
}

// CallbackPayload is the body the computation service posts back when a job
// finishes. On success Cards holds all six hex-encoded 32-byte slots and
// Nonce the rotated re-encryption nonce; on abort both are absent.
type CallbackPayload struct {
	JobID   uint64            `json:"job_id"`
	Outcome domain.JobOutcome `json:"outcome"`
	Cards   []string          `json:"cards,omitempty"`
	Nonce   string            `json:"nonce,omitempty"`
	Reason  string            `json:"reason,omitempty"` // abort diagnostics
}

// DecodeCards parses the payload's card slots into fixed-size ciphertexts.
func (p CallbackPayload) DecodeCards() ([domain.CardSlots]domain.Ciphertext, error) {
	var cards [domain.CardSlots]domain.Ciphertext
	if len(p.Cards) != domain.CardSlots {
		return cards, errBadSlotCount
	}
	for i, c := range p.Cards {
		raw, err := hex.DecodeString(c)
		if err != nil || len(raw) != domain.CardSlotSize {
			return cards, errBadSlot
		}
		copy(cards[i][:], raw)
	}
	return cards, nil
}

// DecodeNonce parses the payload's rotated nonce.
func (p CallbackPayload) DecodeNonce() ([16]byte, error) {
	var nonce [16]byte
	raw, err := hex.DecodeString(p.Nonce)
	if err != nil || len(raw) != len(nonce) {
		return nonce, errBadNonce
	}
	copy(nonce[:], raw)
	return nonce, nil
}
