package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/knostra/knostrad/internal/domain"
)

// AccountService is the slice of the ledger service the account handler uses.
type AccountService interface {
	Balance(ctx context.Context, addr domain.Address) (uint64, error)
	Deposit(ctx context.Context, addr domain.Address, amount uint64) error
}

// AccountHandler serves account balance endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type balanceResponse struct {
	Address domain.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// GetBalance returns an account balance. Unknown addresses report zero.
// GET /api/accounts/{addr}
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(r.PathValue("addr"))
	if addr.IsZero() {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}
	balance, err := h.accounts.Balance(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: balance})
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

// Deposit credits an account.
// POST /api/accounts/{addr}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(r.PathValue("addr"))
	if addr.IsZero() {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	if err := h.accounts.Deposit(r.Context(), addr, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	balance, err := h.accounts.Balance(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: balance})
}
