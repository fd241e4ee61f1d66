// Package livecoinwatch is the REST client for the LiveCoinWatch API, used
// as the fallback market data source when no exchange ticker is reachable.
package livecoinwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/junkhq/whalebot/internal/domain"
)

// CoinData is the subset of the /coins/single response the bot consumes.
type CoinData struct {
	Rate   decimal.Decimal `json:"rate"`
	Volume decimal.Decimal `json:"volume"`
	Cap    decimal.Decimal `json:"cap"`
}

// Client is a LiveCoinWatch API client bound to a single coin code.
type Client struct {
	baseURL    string
	apiKey     string
	coin       string
	httpClient *http.Client
}

// NewClient creates a LiveCoinWatch client for the given coin code (e.g. "JKC").
func NewClient(baseURL, apiKey, coin string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		coin:    coin,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Coin fetches current rate, 24h volume, and market cap in USD.
func (c *Client) Coin(ctx context.Context) (CoinData, error) {
	payload, err := json.Marshal(map[string]any{
		"currency": "USD",
		"code":     c.coin,
		"meta":     true,
	})
	if err != nil {
		return CoinData{}, fmt.Errorf("livecoinwatch: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/coins/single", bytes.NewReader(payload))
	if err != nil {
		return CoinData{}, fmt.Errorf("livecoinwatch: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CoinData{}, fmt.Errorf("livecoinwatch: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CoinData{}, fmt.Errorf("livecoinwatch: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return CoinData{}, fmt.Errorf("livecoinwatch: %w: %s", domain.ErrRateLimited, body)
	case resp.StatusCode == http.StatusUnauthorized:
		return CoinData{}, fmt.Errorf("livecoinwatch: %w: check api key", domain.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return CoinData{}, fmt.Errorf("livecoinwatch: HTTP %d: %s", resp.StatusCode, body)
	}

	var data CoinData
	if err := json.Unmarshal(body, &data); err != nil {
		return CoinData{}, fmt.Errorf("livecoinwatch: decode response: %w", err)
	}
	return data, nil
}

// Volume24h returns the rolling 24h USD volume for the bound coin.
func (c *Client) Volume24h(ctx context.Context) (decimal.Decimal, error) {
	data, err := c.Coin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return data.Volume, nil
}

// MarketContext returns the coin data reshaped for alert rendering.
func (c *Client) MarketContext(ctx context.Context) (domain.MarketContext, error) {
	data, err := c.Coin(ctx)
	if err != nil {
		return domain.MarketContext{}, err
	}
	return domain.MarketContext{
		LastPriceUSD: data.Rate,
		MarketCapUSD: data.Cap,
		Volume24h:    data.Volume,
	}, nil
}
