package interfaces

import "github.com/coinwatch/coinwatch/internal/models"

// WatchlistService manages the ordered, duplicate-free set of tracked coins.
// Mutations update in-memory state synchronously and mirror to durable
// storage in the background; every method returns the resulting list.
type WatchlistService interface {
	Coins() []string
	Contains(coinID string) bool
	Add(coinID string) []string
	Remove(coinID string) []string
	Toggle(coinID string) []string
}

// AlertService manages price alert records.
type AlertService interface {
	Create(req models.AlertRequest) (*models.Alert, error)
	List() []models.Alert
	Active() []models.Alert

	// Evaluate compares active alerts against the latest snapshot and
	// transitions crossed ones to triggered. Returns the newly triggered
	// records.
	Evaluate(assets []models.Asset) []models.Alert
}
