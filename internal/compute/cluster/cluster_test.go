package cluster

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/knostra/knostrad/internal/compute"
	"github.com/knostra/knostrad/internal/crypto"
	"github.com/knostra/knostrad/internal/domain"
	"github.com/knostra/knostrad/internal/store/memory"
)

type capture struct {
	mu       sync.Mutex
	payloads []compute.CallbackPayload
	sigs     []string
	bodies   [][]byte
}

func (c *capture) handle(_ context.Context, body []byte, sig string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var p compute.CallbackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return err
	}
	c.payloads = append(c.payloads, p)
	c.sigs = append(c.sigs, sig)
	c.bodies = append(c.bodies, body)
	return nil
}

func (c *capture) last() (compute.CallbackPayload, []byte, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.payloads)
	return c.payloads[n-1], c.bodies[n-1], c.sigs[n-1]
}

func newCluster(t *testing.T) (*Cluster, *capture, domain.GameStore) {
	t.Helper()
	store := memory.NewStore()
	cl := New(DeriveKey("dev-passphrase"), "cb-secret", store.Games(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	cap := &capture{}
	cl.SetHandler(cap.handle)
	return cl, cap, store.Games()
}

func initSubmission(jobID, gameID uint64) compute.Submission {
	var nonce [16]byte
	nonce[0] = 7
	return compute.Submission{
		JobID:  jobID,
		Kind:   domain.JobInitGame,
		GameID: gameID,
		Args: []compute.Argument{
			compute.PublicU128(nonce),
			compute.GameSlotsRef(gameID),
		},
	}
}

func TestSubmitRequiresHandler(t *testing.T) {
	store := memory.NewStore()
	cl := New(DeriveKey("x"), "s", store.Games(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := cl.Submit(context.Background(), initSubmission(1, 1)); err == nil {
		t.Fatal("submit without handler accepted")
	}
}

func TestInitSealsZeroCards(t *testing.T) {
	cl, cap, _ := newCluster(t)
	if err := cl.Submit(context.Background(), initSubmission(1, 1)); err != nil {
		t.Fatal(err)
	}
	cl.Wait()

	p, body, sig := cap.last()
	if p.Outcome != domain.JobSuccess || p.JobID != 1 {
		t.Fatalf("unexpected payload %+v", p)
	}
	if len(p.Cards) != domain.CardSlots {
		t.Fatalf("cards = %d, want %d", len(p.Cards), domain.CardSlots)
	}
	var initNonce [16]byte
	initNonce[0] = 7
	for i, c := range p.Cards {
		raw, err := hex.DecodeString(c)
		if err != nil || len(raw) != domain.CardSlotSize {
			t.Fatalf("slot %d not a %d-byte hex ciphertext: %q", i, domain.CardSlotSize, c)
		}
		// A fresh game encrypts the zero "no card assigned" value into
		// every slot.
		var ct domain.Ciphertext
		copy(ct[:], raw)
		plain, ok := openSlot(cl, ct, initNonce, uint8(i))
		if !ok {
			t.Fatalf("slot %d does not open under the cluster key", i)
		}
		if plain != [cardPlainSize]byte{} {
			t.Errorf("slot %d plaintext = %v, want all zero", i, plain)
		}
	}
	if _, err := p.DecodeNonce(); err != nil {
		t.Errorf("rotated nonce: %v", err)
	}

	// The callback is signed with the shared secret.
	if !crypto.NewCallbackSigner("cb-secret").Verify(body, sig) {
		t.Error("callback signature does not verify")
	}
}

// openSlot opens one sealed slot under the given job nonce and slot index.
func openSlot(cl *Cluster, ct domain.Ciphertext, jobNonce [16]byte, slot uint8) ([cardPlainSize]byte, bool) {
	var boxNonce [24]byte
	copy(boxNonce[:16], jobNonce[:])
	boxNonce[16] = slot
	var plain [cardPlainSize]byte
	out, ok := secretbox.Open(nil, ct[:], &boxNonce, &cl.key)
	if !ok {
		return plain, false
	}
	copy(plain[:], out)
	return plain, true
}

func TestAssignReencryptsJoinerCards(t *testing.T) {
	cl, cap, games := newCluster(t)
	ctx := context.Background()

	// Seed a game whose slots hold the zero-initialized deal.
	if err := cl.Submit(ctx, initSubmission(1, 42)); err != nil {
		t.Fatal(err)
	}
	cl.Wait()
	dealt, _, _ := cap.last()
	game := domain.Game{GameID: 42, YesState: domain.SideReserved}
	cards, err := dealt.DecodeCards()
	if err != nil {
		t.Fatal(err)
	}
	game.Cards = cards
	if err := games.Create(ctx, game); err != nil {
		t.Fatal(err)
	}

	var joinNonce [16]byte
	joinNonce[1] = 9
	args := []compute.Argument{
		compute.PublicKey("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		compute.PublicU128(joinNonce),
		compute.PublicU8(0), // yes side
	}
	for slot := uint8(0); slot < 3; slot++ {
		args = append(args, compute.EncryptedCard(cl.SealCard(slot+10, slot)))
	}
	args = append(args, compute.GameSlotsRef(42))

	err = cl.Submit(ctx, compute.Submission{
		JobID:  2,
		Kind:   domain.JobJoinGame,
		GameID: 42,
		Args:   args,
	})
	if err != nil {
		t.Fatal(err)
	}
	cl.Wait()

	p, _, _ := cap.last()
	if p.Outcome != domain.JobSuccess {
		t.Fatalf("join circuit aborted: %s", p.Reason)
	}
	out, err := p.DecodeCards()
	if err != nil {
		t.Fatal(err)
	}
	// Yes-side slots were resealed; the no side is untouched.
	for i := 0; i < 3; i++ {
		if out[i] == cards[i] {
			t.Errorf("slot %d not re-encrypted", i)
		}
	}
	for i := 3; i < domain.CardSlots; i++ {
		if out[i] != cards[i] {
			t.Errorf("opponent slot %d rewritten", i)
		}
	}
}

func TestAssignAbortsOnForeignCiphertext(t *testing.T) {
	cl, cap, games := newCluster(t)
	ctx := context.Background()
	if err := games.Create(ctx, domain.Game{GameID: 7}); err != nil {
		t.Fatal(err)
	}

	other := New(DeriveKey("another-key"), "cb-secret", nil, nil)
	var nonce [16]byte
	args := []compute.Argument{
		compute.PublicU128(nonce),
		compute.PublicU8(0),
		compute.EncryptedCard(other.SealCard(1, 0)),
		compute.EncryptedCard(other.SealCard(2, 1)),
		compute.EncryptedCard(other.SealCard(3, 2)),
	}
	err := cl.Submit(ctx, compute.Submission{JobID: 9, Kind: domain.JobJoinGame, GameID: 7, Args: args})
	if err != nil {
		t.Fatal(err)
	}
	cl.Wait()

	p, _, _ := cap.last()
	if p.Outcome != domain.JobAborted || p.Reason == "" {
		t.Fatalf("foreign ciphertext not aborted: %+v", p)
	}
	if len(p.Cards) != 0 {
		t.Error("abort payload carries cards")
	}
}

func TestUnknownJobKindAborts(t *testing.T) {
	cl, cap, _ := newCluster(t)
	err := cl.Submit(context.Background(), compute.Submission{JobID: 3, Kind: "mystery"})
	if err != nil {
		t.Fatal(err)
	}
	cl.Wait()
	p, _, _ := cap.last()
	if p.Outcome != domain.JobAborted {
		t.Fatalf("unknown kind outcome = %s", p.Outcome)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	if DeriveKey("a") != DeriveKey("a") {
		t.Error("same passphrase, different keys")
	}
	if DeriveKey("a") == DeriveKey("b") {
		t.Error("different passphrases, same key")
	}
}
