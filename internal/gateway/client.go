// Package gateway is the HTTP client for the upstream Talent Management
// Skills API. Every MCP tool is a thin read-only forward through it.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 1 << 20 // 1MB

// Config holds upstream connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

// Client issues GET requests against the upstream API.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New creates a Client. A zero timeout falls back to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Get fetches path (with optional query parameters) and returns the raw
// response body. Non-2xx responses become a *StatusError.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (string, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}
	return string(body), nil
}

// snippet keeps upstream error bodies short enough for audit error detail.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
