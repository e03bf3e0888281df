// Package app wires the coinwatch services together. Everything is
// explicitly constructed and injected here; there are no package-level
// singletons.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/coinwatch/coinwatch/internal/clients/coingecko"
	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/interfaces"
	"github.com/coinwatch/coinwatch/internal/localstate"
	"github.com/coinwatch/coinwatch/internal/marketcache"
	"github.com/coinwatch/coinwatch/internal/models"
	"github.com/coinwatch/coinwatch/internal/services/alert"
	"github.com/coinwatch/coinwatch/internal/services/watchlist"
	"github.com/coinwatch/coinwatch/internal/storage/badger"
)

// App holds all initialized services and clients. It is the shared core
// behind cmd/coinwatch-server.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Store       *badger.Store
	KV          interfaces.KeyValueStore
	Client      interfaces.MarketDataClient
	Cache       *marketcache.Cache
	Watchlist   interfaces.WatchlistService
	Alerts      interfaces.AlertService
	Registry    *prometheus.Registry
	StartupTime time.Time

	watchlistSlot *localstate.Slot[[]string]
	alertSlot     *localstate.Slot[[]models.Alert]

	pollMu sync.Mutex
	poller *marketcache.Poller

	listenerMu sync.Mutex
	listeners  []func(marketcache.SnapshotUpdate)
}

// Option customizes app construction.
type Option func(*options)

type options struct {
	client interfaces.MarketDataClient
	logger *common.Logger
}

// WithMarketDataClient swaps the CoinGecko client, used by tests to avoid
// the network.
func WithMarketDataClient(c interfaces.MarketDataClient) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithLogger overrides the config-derived logger.
func WithLogger(l *common.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New initializes configuration, logging, storage, the API client, the
// cache and both durable state slots.
func New(configPath string, opts ...Option) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("COINWATCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join("config", "coinwatch.toml")
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(config, opts...)
}

// NewWithConfig builds the app from an already-resolved configuration.
func NewWithConfig(config *common.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = common.NewLoggerFromConfig(config.Logging)
	}

	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	kv := badger.NewKVStorage(store, logger)

	ctx := context.Background()

	watchlistSlot, err := localstate.Open(ctx, kv, watchlist.StorageKey, models.DefaultCoins, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open watchlist state: %w", err)
	}

	alertSlot, err := localstate.Open(ctx, kv, alert.StorageKey, []models.Alert{}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open alert state: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := o.client
	if client == nil {
		client = coingecko.NewClient(
			coingecko.WithBaseURL(config.CoinGecko.BaseURL),
			coingecko.WithRateLimit(config.CoinGecko.RateLimit),
			coingecko.WithTimeout(config.CoinGecko.GetTimeout()),
			coingecko.WithLogger(logger),
		)
	}

	cache := marketcache.New(client, logger,
		marketcache.WithMetrics(marketcache.NewMetrics(registry)),
	)

	a := &App{
		Config:        config,
		Logger:        logger,
		Store:         store,
		KV:            kv,
		Client:        client,
		Cache:         cache,
		Watchlist:     watchlist.NewService(watchlistSlot, logger),
		Alerts:        alert.NewService(alertSlot, logger),
		Registry:      registry,
		StartupTime:   time.Now(),
		watchlistSlot: watchlistSlot,
		alertSlot:     alertSlot,
	}

	go a.drainWriteFailures()

	logger.Info().
		Int("watchlist", len(a.Watchlist.Coins())).
		Int("alerts", len(a.Alerts.List())).
		Msg("State loaded")

	return a, nil
}

// drainWriteFailures surfaces durable-write errors from both slots as
// warnings. Failures never block or roll back the in-memory state.
func (a *App) drainWriteFailures() {
	for {
		select {
		case err, ok := <-a.watchlistSlot.Failures():
			if !ok {
				return
			}
			a.Logger.Warn().Err(err).Msg("Watchlist persistence degraded")
		case err, ok := <-a.alertSlot.Failures():
			if !ok {
				return
			}
			a.Logger.Warn().Err(err).Msg("Alert persistence degraded")
		}
	}
}

// Close stops polling, flushes pending durable writes and closes storage.
func (a *App) Close() error {
	a.StopPolling()
	a.watchlistSlot.Close()
	a.alertSlot.Close()
	return a.Store.Close()
}
