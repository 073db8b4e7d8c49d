package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/knostra/knostrad/internal/domain"
)

// MarketService is the slice of the ledger service the market handler uses.
type MarketService interface {
	CreateMarket(ctx context.Context, owner domain.Address, params domain.CreateMarketParams) (domain.Market, error)
	GetMarket(ctx context.Context, ref domain.MarketRef) (domain.Market, error)
	GetTreasury(ctx context.Context, ref domain.MarketRef) (domain.Treasury, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	CountMarkets(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, authority domain.Address, ref domain.MarketRef, value uint64) (domain.Market, error)
	Cancel(ctx context.Context, ref domain.MarketRef) (domain.Market, error)
}

// MarketHandler serves market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type createMarketRequest struct {
	Owner  domain.Address            `json:"owner"`
	Params domain.CreateMarketParams `json:"params"`
}

// CreateMarket creates a market and its treasury.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Owner.IsZero() {
		writeError(w, http.StatusBadRequest, "missing owner")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), req.Owner, req.Params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	total, err := h.markets.CountMarkets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "count markets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market.
// GET /api/markets/{owner}/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	market, err := h.markets.GetMarket(r.Context(), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// GetTreasury returns a market's escrow aggregate.
// GET /api/markets/{owner}/{id}/treasury
func (h *MarketHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	treasury, err := h.markets.GetTreasury(r.Context(), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasury)
}

type resolveRequest struct {
	Authority domain.Address `json:"authority"`
	Value     uint64         `json:"value"`
}

// Resolve settles an ongoing market against a reported value.
// POST /api/markets/{owner}/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	market, err := h.markets.Resolve(r.Context(), req.Authority, ref, req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// Cancel cancels a market that has not started.
// POST /api/markets/{owner}/{id}/cancel
func (h *MarketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ref, err := pathMarketRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	market, err := h.markets.Cancel(r.Context(), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}
