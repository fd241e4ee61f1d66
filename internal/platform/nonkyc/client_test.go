package nonkyc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickerServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/market/ticker/JKC_USDT", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestTicker(t *testing.T) {
	srv := tickerServer(t, http.StatusOK, `{
		"lastPriceNumber": 2.15,
		"marketcapNumber": 25000000,
		"volumeNumber": 120000.5
	}`)
	defer srv.Close()

	c := NewClient(srv.URL, "JKC/USDT")
	ticker, err := c.Ticker(context.Background())
	require.NoError(t, err)

	assert.True(t, ticker.LastPrice.Equal(decimal.NewFromFloat(2.15)))
	assert.True(t, ticker.MarketCap.Equal(decimal.NewFromInt(25000000)))
	assert.True(t, ticker.Volume.Equal(decimal.NewFromFloat(120000.5)))
}

func TestMarketContext(t *testing.T) {
	srv := tickerServer(t, http.StatusOK, `{"lastPriceNumber": "2.15", "marketcapNumber": "25000000", "volumeNumber": "120000"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "JKC/USDT")
	mctx, err := c.MarketContext(context.Background())
	require.NoError(t, err)

	// Quoted numbers decode the same as bare ones.
	assert.True(t, mctx.LastPriceUSD.Equal(decimal.NewFromFloat(2.15)))
	assert.True(t, mctx.Volume24h.Equal(decimal.NewFromInt(120000)))
}

func TestPairListed(t *testing.T) {
	srv := tickerServer(t, http.StatusOK, `{"lastPriceNumber": 2.15}`)
	defer srv.Close()

	c := NewClient(srv.URL, "JKC/USDT")
	listed, err := c.PairListed(context.Background())
	require.NoError(t, err)
	assert.True(t, listed)
}

func TestPairListedNotFound(t *testing.T) {
	srv := tickerServer(t, http.StatusNotFound, `{"error": "market not found"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "JKC/USDT")
	listed, err := c.PairListed(context.Background())
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestTickerServerError(t *testing.T) {
	srv := tickerServer(t, http.StatusInternalServerError, `oops`)
	defer srv.Close()

	c := NewClient(srv.URL, "JKC/USDT")
	_, err := c.Ticker(context.Background())
	assert.Error(t, err)
}
