package onramp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// Client wraps the provider's REST endpoints. BaseURL typically points at
// the local proxy so the API key stays out of the mobile client; when the
// gateway itself is the proxy, BaseURL is the provider and APIKey is set.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// CreateBuyQuote requests a purchase quote. A user_limit_exceeded rejection
// comes back as an *APIError recognizable via IsUserLimitExceeded; callers
// treat it as an expected outcome, not a failure.
func (c *Client) CreateBuyQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	var quote Quote
	if err := c.do(ctx, http.MethodPost, "/onramp/v1/buy/quote", req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// CreateSessionToken exchanges checkout parameters for a one-time widget
// session token.
func (c *Client) CreateSessionToken(ctx context.Context, req SessionTokenRequest) (*SessionToken, error) {
	var token SessionToken
	if err := c.do(ctx, http.MethodPost, "/onramp/v1/token", req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ListTransactions fetches one page of the user's transaction history.
func (c *Client) ListTransactions(ctx context.Context, partnerUserRef, pageKey string) (*TransactionsPage, error) {
	if strings.TrimSpace(partnerUserRef) == "" {
		return nil, fmt.Errorf("partner user ref is required")
	}
	path := "/onramp/v1/buy/user/" + url.PathEscape(partnerUserRef) + "/transactions"
	if pageKey != "" {
		path += "?page_key=" + url.QueryEscape(pageKey)
	}
	var page TransactionsPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if c.Logger != nil {
		c.Logger.DebugContext(ctx, "onramp api call",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
