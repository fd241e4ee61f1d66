// Package nonkyc is the REST client for the NonKYC exchange API, the
// primary source for last price, market cap, and 24h volume.
package nonkyc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// Ticker is the subset of the NonKYC market ticker the bot consumes.
type Ticker struct {
	LastPrice decimal.Decimal `json:"lastPriceNumber"`
	MarketCap decimal.Decimal `json:"marketcapNumber"`
	Volume    decimal.Decimal `json:"volumeNumber"`
}

// Client is a NonKYC REST API client bound to a single trading pair.
type Client struct {
	baseURL    string
	pair       string
	httpClient *http.Client
}

// NewClient creates a NonKYC client.
//
// baseURL is the API root, e.g. "https://api.nonkyc.io". pair is the
// configured pair, e.g. "JKC/USDT"; the ticker endpoint wants "JKC_USDT".
func NewClient(baseURL, pair string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		pair:    strings.ReplaceAll(pair, "/", "_"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ticker fetches the current market ticker for the bound pair.
func (c *Client) Ticker(ctx context.Context) (Ticker, error) {
	path := "/api/v2/market/ticker/" + c.pair

	body, err := c.doGet(ctx, path)
	if err != nil {
		return Ticker{}, fmt.Errorf("nonkyc: get ticker %s: %w", c.pair, err)
	}

	var t Ticker
	if err := json.Unmarshal(body, &t); err != nil {
		return Ticker{}, fmt.Errorf("nonkyc: decode ticker: %w", err)
	}
	return t, nil
}

// Volume24h returns the rolling 24h quote volume for the bound pair.
func (c *Client) Volume24h(ctx context.Context) (decimal.Decimal, error) {
	t, err := c.Ticker(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Volume, nil
}

// MarketContext returns the ticker reshaped for alert rendering.
func (c *Client) MarketContext(ctx context.Context) (domain.MarketContext, error) {
	t, err := c.Ticker(ctx)
	if err != nil {
		return domain.MarketContext{}, err
	}
	return domain.MarketContext{
		LastPriceUSD: t.LastPrice,
		MarketCapUSD: t.MarketCap,
		Volume24h:    t.Volume,
	}, nil
}

// PairListed reports whether the bound pair currently has a ticker, i.e.
// whether the coin is listed and trading on NonKYC.
func (c *Client) PairListed(ctx context.Context) (bool, error) {
	_, err := c.Ticker(ctx)
	if err == nil {
		return true, nil
	}
	// A clean 404 means not listed; anything else is a real failure.
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
