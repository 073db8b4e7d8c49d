package handler

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/knostra/knostrad/internal/domain"
)

// maxCallbackBody caps the compute callback payload size.
const maxCallbackBody = 1 << 20

// GameService is the slice of the compute orchestrator the game handler uses.
type GameService interface {
	InitGame(ctx context.Context, gameID uint64, ref domain.MarketRef, nonce [16]byte, jobID uint64) (domain.Game, error)
	JoinGame(ctx context.Context, caller domain.Address, gameID uint64, ref domain.MarketRef, deckRef domain.DeckRef, cards [3]domain.Ciphertext, nonce [16]byte, jobID uint64) (domain.Game, error)
	GetGame(ctx context.Context, gameID uint64) (domain.Game, error)
	GetJob(ctx context.Context, jobID uint64) (domain.ComputeJob, error)
	HandleCallback(ctx context.Context, body []byte, sig string) (domain.ComputeJob, error)
}

// GameHandler serves game lifecycle and compute callback endpoints.
type GameHandler struct {
	games  GameService
	logger *slog.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

type initGameRequest struct {
	GameID   uint64         `json:"game_id"`
	Owner    domain.Address `json:"owner"`
	MarketID uint64         `json:"market_id"`
	Nonce    string         `json:"nonce"` // 16 bytes, hex
	JobID    uint64         `json:"job_id"`
}

// InitGame creates a game bound to a market and submits the init job.
// POST /api/games
func (h *GameHandler) InitGame(w http.ResponseWriter, r *http.Request) {
	var req initGameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	nonce, err := decodeNonce(req.Nonce)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid nonce")
		return
	}

	ref := domain.MarketRef{Owner: req.Owner, MarketID: req.MarketID}
	game, err := h.games.InitGame(r.Context(), req.GameID, ref, nonce, req.JobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

type joinGameRequest struct {
	Caller   domain.Address `json:"caller"`
	Owner    domain.Address `json:"owner"`
	MarketID uint64         `json:"market_id"`
	DeckRef  domain.DeckRef `json:"deck"`
	Cards    [3]string      `json:"cards"` // 32 bytes each, hex
	Nonce    string         `json:"nonce"` // 16 bytes, hex
	JobID    uint64         `json:"job_id"`
}

// JoinGame reserves the caller's side and submits the card assignment job.
// POST /api/games/{id}/join
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUint(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	var req joinGameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Caller.IsZero() {
		writeError(w, http.StatusBadRequest, "missing caller")
		return
	}
	nonce, err := decodeNonce(req.Nonce)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid nonce")
		return
	}
	var cards [3]domain.Ciphertext
	for i, s := range req.Cards {
		raw, err := hex.DecodeString(s)
		if err != nil || len(raw) != domain.CardSlotSize {
			writeError(w, http.StatusBadRequest, "invalid card ciphertext")
			return
		}
		copy(cards[i][:], raw)
	}

	ref := domain.MarketRef{Owner: req.Owner, MarketID: req.MarketID}
	game, err := h.games.JoinGame(r.Context(), req.Caller, gameID, ref, req.DeckRef, cards, nonce, req.JobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// GetGame returns a game's card and player state.
// GET /api/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUint(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	game, err := h.games.GetGame(r.Context(), gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// GetJob returns the state of one compute job.
// GET /api/jobs/{id}
func (h *GameHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathUint(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.games.GetJob(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Callback receives signed completion reports from the computation service.
// Authentication is the HMAC signature header, not the API key.
// POST /api/compute/callback
func (h *GameHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	sig := r.Header.Get("X-Compute-Signature")
	if sig == "" {
		writeError(w, http.StatusUnauthorized, "missing signature")
		return
	}

	job, err := h.games.HandleCallback(r.Context(), body, sig)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func decodeNonce(s string) ([16]byte, error) {
	var nonce [16]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nonce, err
	}
	if len(raw) != len(nonce) {
		return nonce, hex.ErrLength
	}
	copy(nonce[:], raw)
	return nonce, nil
}
