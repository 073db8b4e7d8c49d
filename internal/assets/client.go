// Package assets provides the asset-ownership oracle used by the deck gate.
// The HTTP client talks to the external asset registry; the static oracle
// serves dev deployments and tests.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knostra/knostrad/internal/domain"
)

// HTTPOracle implements domain.AssetOracle against the asset registry's
// JSON API.
type HTTPOracle struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ domain.AssetOracle = (*HTTPOracle)(nil)

// NewHTTPOracle creates an oracle client for the given registry base URL,
// e.g. "https://registry.example.com/v1".
func NewHTTPOracle(baseURL, apiKey string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ownership fetches the ownership-proof record for one asset. Any transport
// or decode failure is returned as an error; callers fail closed.
func (o *HTTPOracle) Ownership(ctx context.Context, assetID string) (domain.OwnershipProof, error) {
	endpoint := o.baseURL + "/assets/" + url.PathEscape(assetID) + "/owner"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.OwnershipProof{}, fmt.Errorf("assets: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return domain.OwnershipProof{}, fmt.Errorf("assets: fetch %s: %w", assetID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.OwnershipProof{}, fmt.Errorf("assets: asset %s: %w", assetID, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.OwnershipProof{}, fmt.Errorf("assets: fetch %s: status %d: %s", assetID, resp.StatusCode, string(msg))
	}

	var proof domain.OwnershipProof
	if err := json.NewDecoder(resp.Body).Decode(&proof); err != nil {
		return domain.OwnershipProof{}, fmt.Errorf("assets: decode proof %s: %w", assetID, err)
	}
	proof.Owner = domain.NormalizeAddress(proof.Owner)
	return proof, nil
}

// StaticOracle serves proofs from a fixed asset ownership table. Dev mode and
// tests use it in place of the registry.
type StaticOracle struct {
	owners map[string]domain.Address
}

var _ domain.AssetOracle = (*StaticOracle)(nil)

// NewStaticOracle creates an oracle over the given asset-to-owner table.
func NewStaticOracle(owners map[string]domain.Address) *StaticOracle {
	normalized := make(map[string]domain.Address, len(owners))
	for id, owner := range owners {
		normalized[id] = domain.NormalizeAddress(owner)
	}
	return &StaticOracle{owners: normalized}
}

// Ownership returns the configured proof or ErrNotFound.
func (o *StaticOracle) Ownership(_ context.Context, assetID string) (domain.OwnershipProof, error) {
	owner, ok := o.owners[assetID]
	if !ok {
		return domain.OwnershipProof{}, fmt.Errorf("assets: asset %s: %w", assetID, domain.ErrNotFound)
	}
	return domain.OwnershipProof{AssetID: assetID, Owner: owner}, nil
}
