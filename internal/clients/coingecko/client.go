// Package coingecko provides a client for the public CoinGecko v3 API
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/interfaces"
	"github.com/coinwatch/coinwatch/internal/models"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	// MarketsPageSize is the upstream page cap for snapshot queries.
	MarketsPageSize = 50
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new CoinGecko client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RemoteFetchError represents a non-success response or transport failure
// from the market-data service.
type RemoteFetchError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("coingecko fetch failed: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("CoinGecko API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteFetchError{Message: err.Error(), Endpoint: path}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &RemoteFetchError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetMarkets retrieves market snapshot rows for the given coin IDs,
// ordered by descending market cap, capped at MarketsPageSize.
func (c *Client) GetMarkets(ctx context.Context, ids []string) ([]models.Asset, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", joinIDs(ids))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(MarketsPageSize))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	var assets []models.Asset
	if err := c.get(ctx, "/coins/markets", params, &assets); err != nil {
		return nil, err
	}

	return assets, nil
}

// GetSimplePrice retrieves the price + 24h change mapping for coin IDs.
func (c *Client) GetSimplePrice(ctx context.Context, ids []string) (map[string]models.SimplePrice, error) {
	params := url.Values{}
	params.Set("ids", joinIDs(ids))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")

	prices := make(map[string]models.SimplePrice)
	if err := c.get(ctx, "/simple/price", params, &prices); err != nil {
		return nil, err
	}

	return prices, nil
}

// GetMarketChart retrieves historical price, market cap and volume series.
func (c *Client) GetMarketChart(ctx context.Context, id string, days int) (*models.MarketChart, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))

	path := fmt.Sprintf("/coins/%s/market_chart", url.PathEscape(id))

	var chart models.MarketChart
	if err := c.get(ctx, path, params, &chart); err != nil {
		return nil, err
	}

	return &chart, nil
}

// Search finds coins matching a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchMatch, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	if resp.Coins == nil {
		return []models.SearchMatch{}, nil
	}
	return resp.Coins, nil
}

type searchResponse struct {
	Coins []models.SearchMatch `json:"coins"`
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
