package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/vidstash/api/internal/config"
)

// FetchExecutor performs the actual byte transfer for one job and
// reports a terminal result. The core never parses media or touches
// files itself.
type FetchExecutor interface {
	Fetch(ctx context.Context, req *FetchRequest) error
	IsConfigured() bool
}

// FetchRequest is what the executor needs to perform one transfer
type FetchRequest struct {
	ResourceID string          `json:"resource_id"`
	URL        string          `json:"url"`
	Rendition  json.RawMessage `json:"rendition"`
	Title      string          `json:"title,omitempty"`
}

// fetchResult is the executor's terminal response
type fetchResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FetcherClient implements FetchExecutor against the fetch service.
// The HTTP client carries no timeout on purpose: a transfer runs as
// long as it runs, and a hung executor stalls the queue rather than
// being silently abandoned.
type FetcherClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewFetcherClient creates a new fetch executor client
func NewFetcherClient(cfg *config.FetcherConfig) *FetcherClient {
	return &FetcherClient{
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
	}
}

// IsConfigured returns true if a fetch service URL is set
func (c *FetcherClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Fetch asks the executor to transfer one resource and awaits the
// terminal result. Falls back to a simulated success when no fetch
// service is configured.
func (c *FetcherClient) Fetch(ctx context.Context, req *FetchRequest) error {
	if !c.IsConfigured() {
		return c.fetchMock(ctx, req)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal fetch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fetch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create fetch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fetch executor unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read fetch response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch executor returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result fetchResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode fetch response: %w", err)
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "fetch failed"
		}
		return errors.New(result.Error)
	}
	return nil
}

// fetchMock simulates a short successful transfer
func (c *FetcherClient) fetchMock(ctx context.Context, req *FetchRequest) error {
	log.Printf("Mock fetch for resource %s", req.ResourceID)
	select {
	case <-time.After(200 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ FetchExecutor = (*FetcherClient)(nil)
