package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TickerProbe checks coin availability on an exchange by hitting its public
// ticker endpoint. A 200 response means the market exists and is trading;
// anything else means not listed. Used to gate WebSocket feed startup for
// exchanges without a dedicated client.
type TickerProbe struct {
	url        string
	httpClient *http.Client
}

// NewTickerProbe creates a probe for a fully-formed ticker URL, e.g.
// "https://api.coinex.com/v1/market/ticker?market=JKCUSDT".
func NewTickerProbe(url string) *TickerProbe {
	return &TickerProbe{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// PairListed reports whether the probed market responded with a ticker.
func (p *TickerProbe) PairListed(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("marketdata: create probe request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("marketdata: probe %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}
