package marketcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/models"
)

// fakeClient counts calls and serves canned or failing responses.
type fakeClient struct {
	mu          sync.Mutex
	marketCalls int
	priceCalls  int
	chartCalls  int
	searchCalls int

	failMarkets error
	assets      []models.Asset
	block       chan struct{} // when set, GetMarkets blocks until closed
}

func (f *fakeClient) GetMarkets(ctx context.Context, ids []string) ([]models.Asset, error) {
	f.mu.Lock()
	f.marketCalls++
	block := f.block
	failErr := f.failMarkets
	assets := f.assets
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if failErr != nil {
		return nil, failErr
	}
	if assets != nil {
		return assets, nil
	}
	out := make([]models.Asset, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Asset{ID: id, CurrentPrice: 100})
	}
	return out, nil
}

func (f *fakeClient) GetSimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePrice, error) {
	f.mu.Lock()
	f.priceCalls++
	f.mu.Unlock()
	prices := make(map[string]models.SimplePrice, len(ids))
	for _, id := range ids {
		prices[id] = models.SimplePrice{USD: 100, Change24h: 1}
	}
	return prices, nil
}

func (f *fakeClient) GetMarketChart(ctx context.Context, id string, days int) (*models.MarketChart, error) {
	f.mu.Lock()
	f.chartCalls++
	f.mu.Unlock()
	return &models.MarketChart{
		Prices: []models.PricePoint{{Timestamp: time.Now(), Value: 100}},
	}, nil
}

func (f *fakeClient) Search(ctx context.Context, query string) ([]models.SearchMatch, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	return []models.SearchMatch{{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}}, nil
}

func (f *fakeClient) markets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marketCalls
}

func (f *fakeClient) setFailMarkets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMarkets = err
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(client *fakeClient, clock *testClock) *Cache {
	return New(client, common.NewSilentLogger(), WithClock(clock.Now))
}

func TestSnapshot_ServesFromCacheWhileFresh(t *testing.T) {
	client := &fakeClient{}
	clock := newTestClock()
	cache := newTestCache(client, clock)
	ctx := context.Background()

	first, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, client.markets())

	// Within the freshness window: no second network call.
	clock.Advance(common.FreshnessMarkets / 2)
	second, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.markets())

	// Past the window the next read refetches.
	clock.Advance(common.FreshnessMarkets)
	_, err = cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.markets())
}

func TestSnapshot_EmptyIDsUseDefaults(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	assets, err := cache.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, assets, len(models.DefaultCoins))
	assert.Equal(t, models.DefaultCoins[0], assets[0].ID)
}

func TestRefreshSnapshot_BypassesFreshnessWindow(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())
	ctx := context.Background()

	_, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	_, err = cache.RefreshSnapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)

	assert.Equal(t, 2, client.markets())
}

func TestSnapshot_FetchErrorKeepsStaleData(t *testing.T) {
	client := &fakeClient{}
	clock := newTestClock()
	cache := newTestCache(client, clock)
	ctx := context.Background()

	good, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, good, 1)

	client.setFailMarkets(errors.New("upstream down"))
	clock.Advance(common.FreshnessMarkets * 2)

	stale, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.Error(t, err)
	assert.Equal(t, good, stale)

	// Recovery replaces the payload again.
	client.setFailMarkets(nil)
	recovered, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, good, recovered)
}

func TestSnapshot_ConcurrentCallersShareOneFetch(t *testing.T) {
	block := make(chan struct{})
	client := &fakeClient{block: block}
	cache := newTestCache(client, newTestClock())
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Snapshot(ctx, []string{"bitcoin"}); err != nil {
				failures.Add(1)
			}
		}()
	}

	// Let all callers pile up on the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, client.markets())
}

func TestSimplePrice_EmptyIDsIsNoOp(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	prices, err := cache.SimplePrice(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Zero(t, client.priceCalls)
}

func TestHistory_BlankIDIsNoOp(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	chart, err := cache.History(context.Background(), "  ", 7)
	require.NoError(t, err)
	assert.Nil(t, chart)
	assert.Zero(t, client.chartCalls)
}

func TestHistory_CachedPerParameterTuple(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())
	ctx := context.Background()

	_, err := cache.History(ctx, "bitcoin", 7)
	require.NoError(t, err)
	_, err = cache.History(ctx, "bitcoin", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, client.chartCalls)

	// A different days value is a different entry.
	_, err = cache.History(ctx, "bitcoin", 30)
	require.NoError(t, err)
	assert.Equal(t, 2, client.chartCalls)
}

func TestSearch_BlankQueryIsNoOp(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())

	matches, err := cache.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, client.searchCalls)
}

func TestSearch_StaysFreshLongerThanPrices(t *testing.T) {
	client := &fakeClient{}
	clock := newTestClock()
	cache := newTestCache(client, clock)
	ctx := context.Background()

	_, err := cache.Search(ctx, "bit")
	require.NoError(t, err)

	// Well past the price window, still within the search window.
	clock.Advance(5 * time.Minute)
	_, err = cache.Search(ctx, "bit")
	require.NoError(t, err)
	assert.Equal(t, 1, client.searchCalls)

	clock.Advance(common.FreshnessSearch)
	_, err = cache.Search(ctx, "bit")
	require.NoError(t, err)
	assert.Equal(t, 2, client.searchCalls)
}

func TestInvalidateAll_ForcesRefetch(t *testing.T) {
	client := &fakeClient{}
	cache := newTestCache(client, newTestClock())
	ctx := context.Background()

	_, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)

	cache.InvalidateAll()

	_, err = cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.markets())
}

func TestFetchedAt_TracksSuccessfulFetches(t *testing.T) {
	client := &fakeClient{}
	clock := newTestClock()
	cache := newTestCache(client, clock)
	ctx := context.Background()

	assert.True(t, cache.FetchedAt([]string{"bitcoin"}).IsZero())

	_, err := cache.Snapshot(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), cache.FetchedAt([]string{"bitcoin"}))
}
