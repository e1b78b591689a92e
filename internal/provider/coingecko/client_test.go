package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coinsync/coinsync/internal/core/engine"
)

func testExecutor() *engine.Executor {
	return &engine.Executor{
		Limiter:     engine.NewRateLimiter(engine.RateConfig{Adaptive: true, MaxPerMinute: 100000, InitialPerMinute: 100000}),
		MaxAttempts: 3,
		Sleep:       func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "", testExecutor(), nil)
}

func TestListCoins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coins/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},
			{"id":"ethereum","symbol":"eth","name":"Ethereum"}
		]`))
	})

	coins, err := client.ListCoins(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	require.Equal(t, "bitcoin", coins[0].ID)
	require.Equal(t, "eth", coins[1].Symbol)
}

func TestListCoinsSendsAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-cg-demo-api-key")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "demo-key", testExecutor(), nil)
	_, err := client.ListCoins(context.Background())
	require.NoError(t, err)
	require.Equal(t, "demo-key", gotKey)
}

func TestExchangeData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coins/bitcoin", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("tickers"))
		require.Equal(t, "false", r.URL.Query().Get("community_data"))
		_, _ = w.Write([]byte(`{
			"id": "bitcoin",
			"symbol": "btc",
			"name": "Bitcoin",
			"tickers": [
				{
					"base": "XBT",
					"target": "USD",
					"market": {"name": "Kraken", "identifier": "kraken"},
					"trade_url": "https://pro.kraken.com/app/trade/xbt-usd"
				}
			]
		}`))
	})

	data, err := client.ExchangeData(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.Equal(t, "bitcoin", data.ID)
	require.Len(t, data.Tickers, 1)
	require.Equal(t, "kraken", data.Tickers[0].Market.Identifier)
	require.Equal(t, "XBT", data.Tickers[0].Base)
}

func TestExchangeDataRequiresCoinID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.ExchangeData(context.Background(), "  ")
	require.Error(t, err)
}

func TestClientRetriesThrottling(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	coins, err := client.ListCoins(context.Background())
	require.NoError(t, err)
	require.Empty(t, coins)
	require.Equal(t, 2, calls)
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ListCoins(context.Background())
	require.ErrorIs(t, err, engine.ErrAttemptsExhausted)
	require.Equal(t, 3, calls)
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ping", r.URL.Path)
		_, _ = w.Write([]byte(`{"gecko_says":"(V3) To the Moon!"}`))
	})
	require.NoError(t, client.Ping(context.Background()))
}
