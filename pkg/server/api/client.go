package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrServerHTTPError indicates that the oracle API returned a non-2xx status.
	ErrServerHTTPError = errors.New("oracle API returned HTTP error")
	// ErrNotInitialized indicates that the ledger has no oracle accounts yet.
	ErrNotInitialized = errors.New("oracle not initialized")
)

// Client reads the oracle and feed accounts through the HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Oracle fetches the oracle state.
func (c *Client) Oracle(ctx context.Context) (*OracleResponse, error) {
	var out OracleResponse
	if err := c.do(ctx, http.MethodGet, "/v1/oracle", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feeds fetches the latest confirmed round of both feeds.
func (c *Client) Feeds(ctx context.Context) (*FeedsResponse, error) {
	var out FeedsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/feeds", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trigger asks the server to trigger an immediate function run.
func (c *Client) Trigger(ctx context.Context) (*TriggerResponse, error) {
	var out TriggerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/trigger", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return ErrNotInitialized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %d: %s", ErrServerHTTPError, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
