// Package handler implements the HTTP handlers for the ledger and game API.
// Each handler declares the narrow service interface it requires so the
// package does not depend on the concrete service implementations.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/knostra/knostrad/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error onto an HTTP status and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor translates the domain sentinel wrapped in err to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrPlayerAlreadyJoined),
		errors.Is(err, domain.ErrInvalidMarketStatus),
		errors.Is(err, domain.ErrNotAWinner),
		errors.Is(err, domain.ErrNoFeesToClaim),
		errors.Is(err, domain.ErrMaxPlayersReached),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientTreasury):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrUnauthorizedResolver),
		errors.Is(err, domain.ErrNotAssetOwner),
		errors.Is(err, domain.ErrInvalidPlayer):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRelationalOp),
		errors.Is(err, domain.ErrInvalidBetAmount),
		errors.Is(err, domain.ErrFieldTooLong),
		errors.Is(err, domain.ErrDeckFull),
		errors.Is(err, domain.ErrGameMarketMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// parseListOpts extracts pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return domain.ListOpts{Limit: limit, Offset: offset}
}

// pathUint parses a named path parameter as uint64.
func pathUint(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}

// pathMarketRef parses the {owner}/{id} path pair into a MarketRef.
func pathMarketRef(r *http.Request) (domain.MarketRef, error) {
	id, err := pathUint(r, "id")
	if err != nil {
		return domain.MarketRef{}, err
	}
	return domain.MarketRef{
		Owner:    domain.NormalizeAddress(domain.Address(r.PathValue("owner"))),
		MarketID: id,
	}, nil
}

// decodeBody decodes the request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
