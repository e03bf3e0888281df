package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.app.Registry, promhttp.HandlerOpts{}))

	// Market data
	mux.HandleFunc("/api/markets", s.handleMarkets)
	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/coins/", s.routeCoins)

	// Watchlist
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/watchlist/", s.routeWatchlist)

	// Alerts
	mux.HandleFunc("/api/alerts", s.handleAlerts)

	// Live updates
	mux.HandleFunc("/api/stream", s.handleStream)
}
