// Package kraken maps provider coins to Kraken trading pairs. Pair names are
// resolved against Kraken's public asset-pair catalog, which uses extended
// names like XXBTZUSD alongside plain altnames.
package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
	"github.com/coinsync/coinsync/internal/mapper"
	"github.com/coinsync/coinsync/internal/provider/coingecko"
)

const (
	exchangeName   = "kraken"
	defaultBaseURL = "https://api.kraken.com"
)

// Asset is one entry from Kraken's /0/public/Assets catalog.
type Asset struct {
	Altname string `json:"altname"`
	Class   string `json:"aclass"`
}

// AssetPair is one entry from Kraken's /0/public/AssetPairs catalog.
type AssetPair struct {
	Altname  string `json:"altname"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	OrderMin string `json:"ordermin"`
	Status   string `json:"status"`
}

type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Provider fetches per-coin exchange tickers. Satisfied by the coingecko
// client.
type Provider interface {
	ExchangeData(ctx context.Context, coinID string) (*coingecko.ExchangeData, error)
}

// Mapper resolves coins against Kraken's pair catalog.
type Mapper struct {
	BaseURL    string
	HTTPClient *http.Client
	Provider   Provider
	Logger     *zap.Logger

	// Target is the preferred quote currency. Tickers quoted in it win
	// over earlier tickers in other currencies; empty means first match.
	Target string

	assets map[string]Asset
	pairs  map[string]AssetPair
}

var _ mapper.Mapper = (*Mapper)(nil)

// New builds a Kraken mapper around the given coin data provider.
func New(baseURL, target string, provider Provider, logger *zap.Logger) *Mapper {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Mapper{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Provider:   provider,
		Logger:     logger,
		Target:     strings.ToUpper(strings.TrimSpace(target)),
	}
}

// ExchangeName returns "kraken".
func (m *Mapper) ExchangeName() string {
	return exchangeName
}

// LoadExchangeData fetches Kraken's asset and asset-pair catalogs.
func (m *Mapper) LoadExchangeData(ctx context.Context) error {
	if m == nil {
		return errors.New("mapper is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	assets := make(map[string]Asset)
	if err := m.fetch(ctx, "/0/public/Assets", &assets); err != nil {
		return fmt.Errorf("load kraken assets: %w", err)
	}
	m.assets = assets

	pairs := make(map[string]AssetPair)
	if err := m.fetch(ctx, "/0/public/AssetPairs", &pairs); err != nil {
		return fmt.Errorf("load kraken asset pairs: %w", err)
	}
	m.pairs = pairs

	if m.Logger != nil {
		m.Logger.Info("loaded kraken exchange data",
			zap.Int("assets", len(m.assets)),
			zap.Int("pairs", len(m.pairs)))
	}
	return nil
}

// Lookup resolves one coin by fetching its exchange tickers and extracting
// the Kraken listing, if any.
func (m *Mapper) Lookup(ctx context.Context, coin core.Coin) (*core.ExchangeListing, bool, error) {
	if m == nil || m.Provider == nil {
		return nil, false, errors.New("mapper is not configured")
	}

	data, err := m.Provider.ExchangeData(ctx, coin.ID)
	if err != nil {
		return nil, false, err
	}

	listing := m.extract(data)
	if listing == nil {
		return nil, false, nil
	}
	return listing, true, nil
}

// extract picks a Kraken ticker out of the provider payload, preferring the
// configured quote currency, and enriches it from the pair catalog.
func (m *Mapper) extract(data *coingecko.ExchangeData) *core.ExchangeListing {
	if data == nil {
		return nil
	}

	var fallback *core.ExchangeListing
	for _, ticker := range data.Tickers {
		if !strings.EqualFold(ticker.Market.Identifier, exchangeName) {
			continue
		}
		base := strings.TrimSpace(ticker.Base)
		target := strings.TrimSpace(ticker.Target)
		if base == "" || target == "" {
			continue
		}

		listing := m.listing(base, target, ticker.TradeURL)
		if m.Target == "" || strings.EqualFold(target, m.Target) {
			return listing
		}
		if fallback == nil {
			fallback = listing
		}
	}
	return fallback
}

func (m *Mapper) listing(base, target, tradeURL string) *core.ExchangeListing {
	listing := &core.ExchangeListing{
		Exchange: exchangeName,
		Symbol:   base + target,
		PairName: base + target,
		Base:     base,
		Target:   target,
		TradeURL: tradeURL,
		Active:   true,
	}

	if pairName, ok := m.findPairName(base, target); ok {
		listing.PairName = pairName
		pair := m.pairs[pairName]
		listing.AltName = pair.Altname
		if pair.OrderMin != "" {
			if min, err := strconv.ParseFloat(pair.OrderMin, 64); err == nil {
				listing.MinOrderSize = min
			}
		}
	}
	return listing
}

// fiat quote currencies Kraken prefixes with Z in extended pair names.
var fiatTargets = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CAD": {}, "CHF": {}, "AUD": {},
}

// findPairName probes the catalog for the official pair name, trying the
// plain concatenation, Kraken's extended X/Z form, the .d suffix and finally
// an altname scan.
func (m *Mapper) findPairName(base, target string) (string, bool) {
	if len(m.pairs) == 0 {
		return "", false
	}

	upperBase := strings.ToUpper(base)
	upperTarget := strings.ToUpper(target)

	candidates := []string{
		base + target,
		upperBase + upperTarget,
		"X" + base + "Z" + target,
		"X" + upperBase + "Z" + upperTarget,
		base + target + ".d",
	}
	if _, fiat := fiatTargets[upperTarget]; fiat {
		candidates = append(candidates,
			"Z"+target+"X"+base,
			"Z"+upperTarget+"X"+upperBase)
	}

	for _, candidate := range candidates {
		if _, ok := m.pairs[candidate]; ok {
			return candidate, true
		}
	}

	for pairName, pair := range m.pairs {
		if pair.Altname == base+target || pair.Altname == upperBase+upperTarget {
			return pairName, true
		}
	}

	return "", false
}

func (m *Mapper) fetch(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var envelope krakenEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("kraken api error: %s", strings.Join(envelope.Error, "; "))
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
