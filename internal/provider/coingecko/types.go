package coingecko

// ExchangeData is the subset of the coin detail payload the mapper needs:
// the exchange tickers for one coin.
type ExchangeData struct {
	ID      string   `json:"id"`
	Symbol  string   `json:"symbol"`
	Name    string   `json:"name"`
	Tickers []Ticker `json:"tickers"`
}

// Ticker is one exchange listing from the coin detail payload.
type Ticker struct {
	Base     string `json:"base"`
	Target   string `json:"target"`
	Market   Market `json:"market"`
	TradeURL string `json:"trade_url"`
}

// Market identifies the exchange a ticker trades on.
type Market struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}
