package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/knostra/knostrad/internal/domain"
)

// DeckService is the slice of the ledger service the deck handler uses.
type DeckService interface {
	CreateDeck(ctx context.Context, owner domain.Address, seed uint64, assetIDs []string) (domain.Deck, error)
	GetDeck(ctx context.Context, ref domain.DeckRef) (domain.Deck, error)
}

// DeckHandler serves card deck registration endpoints.
type DeckHandler struct {
	decks  DeckService
	logger *slog.Logger
}

// NewDeckHandler creates a DeckHandler.
func NewDeckHandler(decks DeckService, logger *slog.Logger) *DeckHandler {
	return &DeckHandler{decks: decks, logger: logger}
}

type createDeckRequest struct {
	Owner  domain.Address `json:"owner"`
	Seed   uint64         `json:"seed"`
	Assets []string       `json:"assets"`
}

// CreateDeck registers an asset-backed deck for its owner.
// POST /api/decks
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Owner.IsZero() {
		writeError(w, http.StatusBadRequest, "missing owner")
		return
	}

	deck, err := h.decks.CreateDeck(r.Context(), req.Owner, req.Seed, req.Assets)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

// GetDeck returns a registered deck.
// GET /api/decks/{owner}/{seed}
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	owner := domain.Address(r.PathValue("owner"))
	seed, err := pathUint(r, "seed")
	if err != nil || owner.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid deck id")
		return
	}
	deck, err := h.decks.GetDeck(r.Context(), domain.DeckRef{Owner: owner, Seed: seed})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}
