// Package mapper defines the exchange mapper contract. A mapper resolves
// provider coins against one exchange's listed pairs.
package mapper

import (
	"context"

	"github.com/coinsync/coinsync/internal/core"
)

// Mapper resolves coins against a specific exchange.
type Mapper interface {
	// ExchangeName returns the exchange identifier, e.g. "kraken".
	ExchangeName() string

	// LoadExchangeData fetches the exchange's asset and pair catalogs.
	// Must be called before Lookup.
	LoadExchangeData(ctx context.Context) error

	// Lookup resolves one coin. found reports whether the coin trades on
	// the exchange; an error is an entity-level failure.
	Lookup(ctx context.Context, coin core.Coin) (*core.ExchangeListing, bool, error)
}
