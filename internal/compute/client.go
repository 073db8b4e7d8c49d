package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	errBadSlotCount = errors.New("compute: callback carries wrong number of card slots")
	errBadSlot      = errors.New("compute: malformed card slot")
	errBadNonce     = errors.New("compute: malformed nonce")
)

// Client submits computation jobs to the confidential-computation service.
// Submission is fire-and-forget; completion arrives later via callback.
type Client interface {
	Submit(ctx context.Context, sub Submission) error
}

// HTTPClient talks to the computation service's job endpoint over HTTP JSON.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a submission client for the given service endpoint,
// e.g. "https://cluster.example.com/v1/jobs".
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit posts the job. Each attempt carries a fresh idempotency key so the
// service can deduplicate network-level retries without conflating them with
// a caller reusing a job offset.
func (c *HTTPClient) Submit(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("compute: encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("compute: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("compute: submit job %d: %w", sub.JobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("compute: submit job %d: status %d: %s", sub.JobID, resp.StatusCode, string(msg))
	}
	return nil
}
