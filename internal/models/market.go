// Package models defines data structures for coinwatch
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultCoins is the built-in watchlist seed, also used when a market
// snapshot is requested with no identifiers.
var DefaultCoins = []string{"bitcoin", "ethereum", "cardano", "polkadot", "chainlink"}

// Asset holds a market snapshot row for a single coin.
// The ID is the stable join key between watchlist entries and market data.
type Asset struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	CurrentPrice      float64   `json:"current_price"`
	PriceChangePct24h float64   `json:"price_change_percentage_24h"`
	MarketCap         float64   `json:"market_cap"`
	Image             string    `json:"image"`
	LastUpdated       time.Time `json:"last_updated"`
}

// SimplePrice holds the lightweight price lookup for a coin.
type SimplePrice struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
}

// PricePoint is a single (timestamp, value) sample in a historical series.
// The wire format is a two-element array [unix_ms, value].
type PricePoint struct {
	Timestamp time.Time
	Value     float64
}

// UnmarshalJSON decodes the [unix_ms, value] pair format.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("cannot unmarshal price point %s: %w", string(data), err)
	}
	p.Timestamp = time.UnixMilli(int64(pair[0])).UTC()
	p.Value = pair[1]
	return nil
}

// MarshalJSON encodes back to the [unix_ms, value] pair format.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp.UnixMilli()), p.Value})
}

// MarketChart holds the three parallel historical series for a coin.
type MarketChart struct {
	Prices       []PricePoint `json:"prices"`
	MarketCaps   []PricePoint `json:"market_caps"`
	TotalVolumes []PricePoint `json:"total_volumes"`
}

// SearchMatch is a lightweight coin search result.
type SearchMatch struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
