// Package marketcache caches market-data queries keyed by their full
// parameter tuple, with staleness-aware reuse, in-flight deduplication and
// scheduled background refresh.
//
// A fetch error never evicts previously cached data: callers get the last
// good payload back together with the error, so consumers can keep showing
// stale data while offering a retry.
package marketcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/interfaces"
	"github.com/coinwatch/coinwatch/internal/models"
)

// Cache is the staleness-aware front to a MarketDataClient.
type Cache struct {
	client  interfaces.MarketDataClient
	logger  *common.Logger
	metrics *Metrics
	now     func() time.Time // injectable clock for testing

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*entry
}

// entry holds one cached query result. fetchedAt moves only on success;
// lastErr records the most recent failed refresh, if any.
type entry struct {
	data      interface{}
	fetchedAt time.Time
	lastErr   error
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithClock sets the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a market data cache in front of the given client.
func New(client interfaces.MarketDataClient, logger *common.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		client:  client,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns market snapshot rows for the given coin IDs, serving a
// cached result while it is fresh. Empty input falls back to the built-in
// default coin set.
func (c *Cache) Snapshot(ctx context.Context, ids []string) ([]models.Asset, error) {
	ids = snapshotIDs(ids)
	data, err := c.fetch(ctx, snapshotKey(ids), common.FreshnessMarkets, false, func(ctx context.Context) (interface{}, error) {
		return c.client.GetMarkets(ctx, ids)
	})
	assets, _ := data.([]models.Asset)
	return assets, err
}

// RefreshSnapshot forces a network refresh for the given coin IDs,
// bypassing the freshness window. Used by the background poller.
func (c *Cache) RefreshSnapshot(ctx context.Context, ids []string) ([]models.Asset, error) {
	ids = snapshotIDs(ids)
	data, err := c.fetch(ctx, snapshotKey(ids), common.FreshnessMarkets, true, func(ctx context.Context) (interface{}, error) {
		return c.client.GetMarkets(ctx, ids)
	})
	assets, _ := data.([]models.Asset)
	return assets, err
}

// SimplePrice returns the price + 24h change mapping for the given coin
// IDs. An empty ID set is a no-op: empty mapping, no network call.
func (c *Cache) SimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePrice, error) {
	if len(ids) == 0 {
		return map[string]models.SimplePrice{}, nil
	}
	data, err := c.fetch(ctx, priceKey(ids), common.FreshnessPrices, false, func(ctx context.Context) (interface{}, error) {
		return c.client.GetSimplePrice(ctx, ids)
	})
	prices, _ := data.(map[string]models.SimplePrice)
	return prices, err
}

// RefreshSimplePrice forces a network refresh of the price mapping.
func (c *Cache) RefreshSimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePrice, error) {
	if len(ids) == 0 {
		return map[string]models.SimplePrice{}, nil
	}
	data, err := c.fetch(ctx, priceKey(ids), common.FreshnessPrices, true, func(ctx context.Context) (interface{}, error) {
		return c.client.GetSimplePrice(ctx, ids)
	})
	prices, _ := data.(map[string]models.SimplePrice)
	return prices, err
}

// History returns the historical series for one coin. A blank coin ID is a
// no-op: nil chart, no network call. days defaults to 7. History is never
// time-polled; it refreshes on parameter change or explicit invalidation.
func (c *Cache) History(ctx context.Context, id string, days int) (*models.MarketChart, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	if days <= 0 {
		days = 7
	}
	data, err := c.fetch(ctx, historyKey(id, days), common.FreshnessHistory, false, func(ctx context.Context) (interface{}, error) {
		return c.client.GetMarketChart(ctx, id, days)
	})
	chart, _ := data.(*models.MarketChart)
	return chart, err
}

// Search finds coins matching a free-text query. A blank query is a no-op:
// empty result, no network call. Search results stay fresh for much longer
// than prices.
func (c *Cache) Search(ctx context.Context, query string) ([]models.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchMatch{}, nil
	}
	data, err := c.fetch(ctx, searchKey(query), common.FreshnessSearch, false, func(ctx context.Context) (interface{}, error) {
		return c.client.Search(ctx, query)
	})
	matches, _ := data.([]models.SearchMatch)
	return matches, err
}

// InvalidateAll drops every cached entry. The next call per key goes to
// the network again.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// fetch serves the cached entry while fresh (unless force), otherwise
// issues the load through a singleflight group so concurrent identical
// requests share one outstanding network call per key.
func (c *Cache) fetch(ctx context.Context, key string, ttl time.Duration, force bool, load func(context.Context) (interface{}, error)) (interface{}, error) {
	if !force {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.fresh(e, ttl) {
			data := e.data
			c.mu.Unlock()
			c.metrics.hit(key)
			return data, nil
		}
		c.mu.Unlock()
	}

	c.metrics.miss(key)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return load(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}

	if err != nil {
		// Keep the stale payload visible alongside the error.
		e.lastErr = err
		c.metrics.fetchError(key)
		c.logger.Warn().Err(err).Str("key", key).Msg("Market data fetch failed, serving cached payload if any")
		return e.data, err
	}

	e.data = v
	e.fetchedAt = c.now()
	e.lastErr = nil
	return v, nil
}

func (c *Cache) fresh(e *entry, ttl time.Duration) bool {
	if e.fetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(e.fetchedAt) < ttl
}

// FetchedAt reports when the snapshot for the given IDs was last
// successfully fetched; zero when never.
func (c *Cache) FetchedAt(ids []string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[snapshotKey(snapshotIDs(ids))]; ok {
		return e.fetchedAt
	}
	return time.Time{}
}

func snapshotIDs(ids []string) []string {
	if len(ids) == 0 {
		return models.DefaultCoins
	}
	return ids
}

func snapshotKey(ids []string) string {
	return "markets:" + strings.Join(ids, ",")
}

func priceKey(ids []string) string {
	return "price:" + strings.Join(ids, ",")
}

func historyKey(id string, days int) string {
	return fmt.Sprintf("chart:%s:%d", id, days)
}

func searchKey(query string) string {
	return "search:" + query
}
