package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/knostra/knostrad/internal/domain"
	"github.com/knostra/knostrad/internal/ledger"
)

// BetService is the slice of the ledger service the bet handler uses.
type BetService interface {
	PlaceBet(ctx context.Context, user domain.Address, ref domain.MarketRef, amount uint64, choice bool) (domain.Bet, error)
	Claim(ctx context.Context, user domain.Address, ref domain.MarketRef) (ledger.ClaimResult, error)
	ClaimFees(ctx context.Context, caller domain.Address, ref domain.MarketRef) (uint64, error)
	GetBet(ctx context.Context, ref domain.MarketRef, user domain.Address) (domain.Bet, error)
	ListBets(ctx context.Context, ref domain.MarketRef, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves bet placement and claim endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type placeBetRequest struct {
	User   domain.Address `json:"user"`
	Amount uint64         `json:"amount"`
	Choice bool           `json:"choice"`
}

// PlaceBet escrows a stake on one side of a market.
// POST /api/markets/{owner}/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.User.IsZero() {
		writeError(w, http.StatusBadRequest, "missing user")
		return
	}

	bet, err := h.bets.PlaceBet(r.Context(), req.User, ref, req.Amount, req.Choice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

type listBetsResponse struct {
	Bets   []domain.Bet `json:"bets"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListBets returns the bets on a market.
// GET /api/markets/{owner}/{id}/bets
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	opts := parseListOpts(r)

	bets, err := h.bets.ListBets(r.Context(), ref, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets, Limit: opts.Limit, Offset: opts.Offset})
}

// GetBet returns a single user's bet on a market.
// GET /api/markets/{owner}/{id}/bets/{user}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	user := domain.Address(r.PathValue("user"))
	if user.IsZero() {
		writeError(w, http.StatusBadRequest, "missing user")
		return
	}
	bet, err := h.bets.GetBet(r.Context(), ref, user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type claimRequest struct {
	User domain.Address `json:"user"`
}

// Claim pays out or refunds a settled bet.
// POST /api/markets/{owner}/{id}/claim
func (h *BetHandler) Claim(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.User.IsZero() {
		writeError(w, http.StatusBadRequest, "missing user")
		return
	}

	result, err := h.bets.Claim(r.Context(), req.User, ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type claimFeesRequest struct {
	Caller domain.Address `json:"caller"`
}

type claimFeesResponse struct {
	Amount uint64 `json:"amount"`
}

// ClaimFees transfers accrued creator fees to the market creator.
// POST /api/markets/{owner}/{id}/fees/claim
func (h *BetHandler) ClaimFees(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	var req claimFeesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Caller.IsZero() {
		writeError(w, http.StatusBadRequest, "missing caller")
		return
	}

	amount, err := h.bets.ClaimFees(r.Context(), req.Caller, ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimFeesResponse{Amount: amount})
}
