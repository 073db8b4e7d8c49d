package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/knostra/knostrad/internal/domain"
	"github.com/knostra/knostrad/internal/ledger"
	"github.com/knostra/knostrad/internal/store/memory"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.ErrAlreadyClaimed, http.StatusConflict},
		{domain.ErrInvalidMarketStatus, http.StatusConflict},
		{domain.ErrInsufficientFunds, http.StatusConflict},
		{domain.ErrUnauthorizedResolver, http.StatusForbidden},
		{domain.ErrNotAssetOwner, http.StatusForbidden},
		{domain.ErrInvalidPlayer, http.StatusForbidden},
		{domain.ErrInvalidBetAmount, http.StatusBadRequest},
		{domain.ErrGameMarketMismatch, http.StatusBadRequest},
		{domain.ErrLockHeld, http.StatusTooManyRequests},
		{errors.New("opaque"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("ledger: doing thing: %w", tc.err)
		if got := statusFor(wrapped); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseListOpts(t *testing.T) {
	cases := []struct {
		query string
		want  domain.ListOpts
	}{
		{"", domain.ListOpts{Limit: 50}},
		{"limit=10&offset=20", domain.ListOpts{Limit: 10, Offset: 20}},
		{"limit=9000", domain.ListOpts{Limit: 500}},
		{"limit=-1&offset=-2", domain.ListOpts{Limit: 50}},
		{"limit=abc", domain.ListOpts{Limit: 50}},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/markets?"+tc.query, nil)
		if got := parseListOpts(r); got != tc.want {
			t.Errorf("parseListOpts(%q) = %+v, want %+v", tc.query, got, tc.want)
		}
	}
}

func newMarketMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc := ledger.New(ledger.Config{
		Store:     memory.NewStore(),
		Namespace: "handler-test",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h := NewMarketHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets", h.CreateMarket)
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{owner}/{id}", h.GetMarket)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
	return rec
}

func TestMarketEndpoints(t *testing.T) {
	mux := newMarketMux(t)
	creator := "0x1111111111111111111111111111111111111111"

	req := map[string]any{
		"owner": creator,
		"params": map[string]any{
			"market_id":           1,
			"name":                "btc above 50k",
			"token":               "BTC",
			"relational_op":       ">=",
			"target_value":        50_000,
			"required_bet_amount": 1000,
			"max_player_count":    10,
		},
	}
	rec := postJSON(t, mux, "/api/markets", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created domain.Market
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != domain.StatusNotStarted || created.MarketID != 1 {
		t.Errorf("created market %+v", created)
	}

	// Duplicate identity conflicts.
	if rec := postJSON(t, mux, "/api/markets", req); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d", rec.Code)
	}

	// Unknown fields are rejected, not silently dropped.
	rec = postJSON(t, mux, "/api/markets", map[string]any{"owner": creator, "bogus": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/"+creator+"/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type %q", ct)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/"+creator+"/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing market status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list listMarketsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Markets) != 1 || list.Total != 1 || list.Limit != 1 {
		t.Errorf("list = %+v", list)
	}
}
