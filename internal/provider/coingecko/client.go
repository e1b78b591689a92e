// Package coingecko is the coin list provider. Every call goes through the
// resilient executor, so pacing and retry behavior is uniform across
// endpoints.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
	"github.com/coinsync/coinsync/internal/core/engine"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
)

// Client talks to the CoinGecko API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Executor   *engine.Executor
	Logger     *zap.Logger
}

// NewClient builds a client around the given executor. A nil httpClient gets
// a 30 second timeout default.
func NewClient(baseURL, apiKey string, exec *engine.Executor, logger *zap.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Executor:   exec,
		Logger:     logger,
	}
}

// ListCoins returns the full coin universe, ordered as the API delivers it.
func (c *Client) ListCoins(ctx context.Context) ([]core.Coin, error) {
	body, err := c.get(ctx, "/coins/list", nil)
	if err != nil {
		return nil, err
	}

	var coins []core.Coin
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("decode coin list: %w", err)
	}

	if c.Logger != nil {
		c.Logger.Info("retrieved coin list", zap.Int("count", len(coins)))
	}
	return coins, nil
}

// ExchangeData returns the exchange tickers for one coin.
func (c *Client) ExchangeData(ctx context.Context, coinID string) (*ExchangeData, error) {
	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return nil, errors.New("coin id is required")
	}

	params := url.Values{
		"tickers":        {"true"},
		"community_data": {"false"},
		"developer_data": {"false"},
		"sparkline":      {"false"},
	}
	body, err := c.get(ctx, "/coins/"+url.PathEscape(coinID), params)
	if err != nil {
		return nil, err
	}

	var data ExchangeData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode exchange data for %s: %w", coinID, err)
	}
	return &data, nil
}

// Ping verifies API reachability and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/ping", nil)
	return err
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c == nil || c.Executor == nil {
		return nil, errors.New("client is not configured")
	}

	target := c.BaseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	resp, err := c.Executor.Execute(ctx, endpoint, func(ctx context.Context) (*engine.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.APIKey != "" {
			req.Header.Set(apiKeyHeader, c.APIKey)
		}

		httpResp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close() // nolint:errcheck // best-effort cleanup

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		return &engine.Response{
			StatusCode: httpResp.StatusCode,
			Body:       body,
			Header:     httpResp.Header,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
