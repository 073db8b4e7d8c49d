// Package cluster is an in-process confidential-computation service used by
// dev deployments and tests. It implements the two card circuits against a
// local secretbox key and delivers signed callbacks asynchronously, so the
// whole game flow runs without an external cluster.
package cluster

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/knostra/knostrad/internal/compute"
	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
)

// cardPlainSize is the sealed plaintext size per card; with the secretbox
// overhead this yields exactly one 32-byte slot.
const cardPlainSize = domain.CardSlotSize - secretbox.Overhead

// Handler receives a signed callback body, the same contract as the HTTP
// callback endpoint.
type Handler func(ctx context.Context, body []byte, sig string) error

// Cluster is the in-process computation service. It satisfies
// compute.Client; Submit runs the circuit on a goroutine and posts the
// result through the configured handler.
type Cluster struct {
	key    [32]byte
	signer *crypto.CallbackSigner
	games  domain.GameStore
	logger *slog.Logger

	mu      sync.Mutex
	handler Handler
	wg      sync.WaitGroup
}

var _ compute.Client = (*Cluster)(nil)

// New creates a Cluster sealing cards under key and signing callbacks with
// the shared callback secret. The game store gives the circuits read access
// to current slot state.
func New(key [32]byte, callbackSecret string, games domain.GameStore, logger *slog.Logger) *Cluster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cluster{
		key:    key,
		signer: crypto.NewCallbackSigner(callbackSecret),
		games:  games,
		logger: logger.With(slog.String("component", "cluster")),
	}
}

// SetHandler wires the callback target. Must be set before the first Submit.
func (c *Cluster) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Wait blocks until all in-flight computations have delivered their
// callbacks. Tests use this to make the asynchronous flow deterministic.
func (c *Cluster) Wait() {
	c.wg.Wait()
}

// Submit runs the job's circuit asynchronously and delivers the callback.
func (c *Cluster) Submit(ctx context.Context, sub compute.Submission) error {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return fmt.Errorf("cluster: no callback handler configured")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		payload := c.run(context.WithoutCancel(ctx), sub)
		body, err := json.Marshal(payload)
		if err != nil {
			c.logger.Error("encode callback", slog.String("error", err.Error()))
			return
		}
		if err := handler(context.WithoutCancel(ctx), body, c.signer.Sign(body)); err != nil {
			c.logger.Error("deliver callback",
				slog.Uint64("job_id", sub.JobID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

func (c *Cluster) run(ctx context.Context, sub compute.Submission) compute.CallbackPayload {
	var (
		cards [domain.CardSlots]domain.Ciphertext
		err   error
	)
	switch sub.Kind {
	case domain.JobInitGame:
		cards, err = c.initSlots(sub)
	case domain.JobJoinGame:
		cards, err = c.assign(ctx, sub)
	default:
		err = fmt.Errorf("unknown job kind %q", sub.Kind)
	}
	if err != nil {
		c.logger.Warn("circuit aborted",
			slog.Uint64("job_id", sub.JobID),
			slog.String("kind", string(sub.Kind)),
			slog.String("error", err.Error()),
		)
		return compute.CallbackPayload{
			JobID:   sub.JobID,
			Outcome: domain.JobAborted,
			Reason:  err.Error(),
		}
	}

	var nonce [16]byte
	rand.Read(nonce[:])
	out := compute.CallbackPayload{
		JobID:   sub.JobID,
		Outcome: domain.JobSuccess,
		Cards:   make([]string, domain.CardSlots),
		Nonce:   hex.EncodeToString(nonce[:]),
	}
	for i := range cards {
		out.Cards[i] = hex.EncodeToString(cards[i][:])
	}
	return out
}

// initSlots seals a zero card value into every slot. A zero plaintext is the
// "no card assigned" marker the join circuit's guard relies on, so a fresh
// game must encrypt exactly that.
func (c *Cluster) initSlots(sub compute.Submission) ([domain.CardSlots]domain.Ciphertext, error) {
	var cards [domain.CardSlots]domain.Ciphertext
	nonce, err := submissionNonce(sub)
	if err != nil {
		return cards, err
	}
	for i := range cards {
		var plain [cardPlainSize]byte
		cards[i] = c.seal(plain, nonce, uint8(i))
	}
	return cards, nil
}

// assign reseals the joiner's three cards into their side's slots and keeps
// the opponent's slots as stored.
func (c *Cluster) assign(ctx context.Context, sub compute.Submission) ([domain.CardSlots]domain.Ciphertext, error) {
	var cards [domain.CardSlots]domain.Ciphertext

	game, err := c.games.Get(ctx, sub.GameID)
	if err != nil {
		return cards, fmt.Errorf("read game %d: %w", sub.GameID, err)
	}
	cards = game.Cards

	var (
		side     *uint8
		incoming []domain.Ciphertext
	)
	for _, arg := range sub.Args {
		switch arg.Kind {
		case compute.ArgPublicU8:
			raw, err := hex.DecodeString(arg.Value)
			if err != nil || len(raw) != 1 {
				return cards, fmt.Errorf("malformed side argument")
			}
			side = &raw[0]
		case compute.ArgCiphertext:
			raw, err := hex.DecodeString(arg.Value)
			if err != nil || len(raw) != domain.CardSlotSize {
				return cards, fmt.Errorf("malformed card argument")
			}
			var ct domain.Ciphertext
			copy(ct[:], raw)
			incoming = append(incoming, ct)
		}
	}
	if side == nil || len(incoming) != domain.CardSlots/2 {
		return cards, fmt.Errorf("incomplete argument list")
	}

	nonce, err := submissionNonce(sub)
	if err != nil {
		return cards, err
	}
	// Side byte 0 is yes (slots 0-2), anything else no (slots 3-5).
	base := 0
	if *side != 0 {
		base = domain.CardSlots / 2
	}
	for i, ct := range incoming {
		plain, err := c.open(ct)
		if err != nil {
			return cards, fmt.Errorf("card %d: %w", i, err)
		}
		cards[base+i] = c.seal(plain, nonce, uint8(base+i))
	}
	return cards, nil
}

func (c *Cluster) seal(plain [cardPlainSize]byte, jobNonce [16]byte, slot uint8) domain.Ciphertext {
	var boxNonce [24]byte
	copy(boxNonce[:16], jobNonce[:])
	boxNonce[16] = slot
	sealed := secretbox.Seal(nil, plain[:], &boxNonce, &c.key)

	var ct domain.Ciphertext
	copy(ct[:], sealed)
	return ct
}

// open tries each slot nonce under the zero job nonce, the convention dev
// players seal their submitted cards with (see SealCard).
func (c *Cluster) open(ct domain.Ciphertext) ([cardPlainSize]byte, error) {
	var plain [cardPlainSize]byte
	for slot := 0; slot < domain.CardSlots; slot++ {
		var boxNonce [24]byte
		boxNonce[16] = uint8(slot)
		if out, ok := secretbox.Open(nil, ct[:], &boxNonce, &c.key); ok {
			copy(plain[:], out)
			return plain, nil
		}
	}
	return plain, fmt.Errorf("ciphertext does not open under cluster key")
}

// SealCard seals a card value the way a dev player would before submitting
// a join: zero job nonce, slot index 0..2.
func (c *Cluster) SealCard(value uint8, slot uint8) domain.Ciphertext {
	var plain [cardPlainSize]byte
	plain[0] = value
	return c.seal(plain, [16]byte{}, slot)
}

func submissionNonce(sub compute.Submission) ([16]byte, error) {
	var nonce [16]byte
	for _, arg := range sub.Args {
		if arg.Kind != compute.ArgPublicU128 {
			continue
		}
		raw, err := hex.DecodeString(arg.Value)
		if err != nil || len(raw) != len(nonce) {
			return nonce, fmt.Errorf("malformed nonce argument")
		}
		copy(nonce[:], raw)
		return nonce, nil
	}
	return nonce, fmt.Errorf("missing nonce argument")
}

// DeriveKey derives a deterministic dev cluster key from a passphrase.
func DeriveKey(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}
