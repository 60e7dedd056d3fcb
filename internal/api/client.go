package api

import (
	"context"
	"encoding/json"
	"fmt"
	"humidcast/internal/metrics"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response ends up in an error
const maxErrorBody = 512

// Invalidator is told when the upstream rejects a credential
type Invalidator interface {
	Invalidate(token string)
}

// Client reads the sensor catalog and sensor histories from the telemetry API
type Client struct {
	baseURL     string
	client      *http.Client
	invalidator Invalidator
}

// NewClient creates a telemetry API client. Rejected credentials are reported
// to inv so the session re-authenticates.
func NewClient(baseURL string, client *http.Client, inv Invalidator) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      client,
		invalidator: inv,
	}
}

// getJSON performs an authorized GET and decodes a 200 body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, token string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if c.invalidator != nil {
			c.invalidator.Invalidate(token)
		}
		return fmt.Errorf("%w: %w", ErrUnauthorized, newStatusError(resp))
	case resp.StatusCode != http.StatusOK:
		return newStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
