// Package interfaces defines service contracts for coinwatch
package interfaces

import (
	"context"

	"github.com/coinwatch/coinwatch/internal/models"
)

// MarketDataClient is the transport boundary to the external market-data
// service. Implementations issue one network call per method invocation;
// caching, deduplication and scheduling live above this interface.
type MarketDataClient interface {
	// GetMarkets retrieves snapshot rows for the given coin IDs, ordered by
	// descending market cap, capped at the upstream page size.
	GetMarkets(ctx context.Context, ids []string) ([]models.Asset, error)

	// GetSimplePrice retrieves price + 24h change keyed by coin ID.
	GetSimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePrice, error)

	// GetMarketChart retrieves historical price/cap/volume series.
	GetMarketChart(ctx context.Context, id string, days int) (*models.MarketChart, error)

	// Search finds coins matching a free-text query.
	Search(ctx context.Context, query string) ([]models.SearchMatch, error)
}
