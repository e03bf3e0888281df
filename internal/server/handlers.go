package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/models"
	"github.com/coinwatch/coinwatch/internal/services/alert"
)

// assetView decorates an asset with display labels.
type assetView struct {
	models.Asset
	PriceLabel     string `json:"price_label"`
	MarketCapLabel string `json:"market_cap_label"`
	ChangeLabel    string `json:"change_label"`
	InWatchlist    bool   `json:"in_watchlist"`
}

// marketsResponse carries snapshot rows plus the refresh state. Error and
// assets can both be set at once: a failed refresh keeps the last good
// payload visible.
type marketsResponse struct {
	Assets    []assetView `json:"assets"`
	FetchedAt time.Time   `json:"fetched_at,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	coins := s.app.Watchlist.Coins()
	assets, err := s.app.Cache.Snapshot(r.Context(), coins)

	resp := marketsResponse{
		Assets:    s.assetViews(assets),
		FetchedAt: s.app.Cache.FetchedAt(coins),
	}
	if err != nil {
		resp.Error = err.Error()
		if len(assets) == 0 {
			WriteJSON(w, http.StatusBadGateway, resp)
			return
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) assetViews(assets []models.Asset) []assetView {
	views := make([]assetView, len(assets))
	for i, a := range assets {
		views[i] = assetView{
			Asset:          a,
			PriceLabel:     common.FormatUSD(a.CurrentPrice),
			MarketCapLabel: common.FormatMarketCap(a.MarketCap),
			ChangeLabel:    common.FormatChangePct(a.PriceChangePct24h),
			InWatchlist:    s.app.Watchlist.Contains(a.ID),
		}
	}
	return views
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var ids []string
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		ids = strings.Split(raw, ",")
	}

	prices, err := s.app.Cache.SimplePrice(r.Context(), ids)
	if err != nil && len(prices) == 0 {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, prices)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	matches, err := s.app.Cache.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil && len(matches) == 0 {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"coins": matches})
}

// routeCoins dispatches /api/coins/{id}/history and /api/coins/{id}/chart.png.
func (s *Server) routeCoins(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/coins/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	coinID := parts[0]
	switch parts[1] {
	case "history":
		s.handleCoinHistory(w, r, coinID)
	case "chart.png":
		s.handleCoinChart(w, r, coinID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func parseDays(r *http.Request) int {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil && d > 0 {
			days = d
		}
	}
	return days
}

func (s *Server) handleCoinHistory(w http.ResponseWriter, r *http.Request, coinID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	chart, err := s.app.Cache.History(r.Context(), coinID, parseDays(r))
	if err != nil && chart == nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if chart == nil {
		WriteError(w, http.StatusNotFound, "No history for coin")
		return
	}

	WriteJSON(w, http.StatusOK, chart)
}

func (s *Server) handleCoinChart(w http.ResponseWriter, r *http.Request, coinID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	days := parseDays(r)
	chart, err := s.app.Cache.History(r.Context(), coinID, days)
	if err != nil && chart == nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if chart == nil || len(chart.Prices) < 2 {
		WriteError(w, http.StatusNotFound, "Not enough history to chart")
		return
	}

	png, err := renderPriceChart(coinID, days, chart)
	if err != nil {
		s.logger.Warn().Err(err).Str("coin", coinID).Msg("Chart render failed")
		WriteError(w, http.StatusInternalServerError, "Chart render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// watchlistResponse echoes the resulting list after any mutation.
type watchlistResponse struct {
	Coins []string `json:"coins"`
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, watchlistResponse{Coins: s.app.Watchlist.Coins()})
}

// routeWatchlist dispatches /api/watchlist/{id} and /api/watchlist/{id}/toggle.
func (s *Server) routeWatchlist(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/watchlist/")
	if rest == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	if coinID, ok := strings.CutSuffix(rest, "/toggle"); ok {
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		coins := s.app.Watchlist.Toggle(coinID)
		s.app.RestartPolling()
		WriteJSON(w, http.StatusOK, watchlistResponse{Coins: coins})
		return
	}

	if strings.Contains(rest, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		coins := s.app.Watchlist.Add(rest)
		s.app.RestartPolling()
		WriteJSON(w, http.StatusOK, watchlistResponse{Coins: coins})
	case http.MethodDelete:
		coins := s.app.Watchlist.Remove(rest)
		s.app.RestartPolling()
		WriteJSON(w, http.StatusOK, watchlistResponse{Coins: coins})
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("status") == string(models.AlertActive) {
			WriteJSON(w, http.StatusOK, map[string]interface{}{"alerts": s.app.Alerts.Active()})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"alerts": s.app.Alerts.List()})

	case http.MethodPost:
		var req models.AlertRequest
		if !DecodeJSON(w, r, &req) {
			return
		}

		record, err := s.app.Alerts.Create(req)
		if err != nil {
			var verr *alert.ValidationError
			if errors.As(err, &verr) {
				WriteError(w, http.StatusUnprocessableEntity, verr.Error())
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		WriteJSON(w, http.StatusCreated, record)

	default:
		w.Header().Set("Allow", "GET, POST")
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
