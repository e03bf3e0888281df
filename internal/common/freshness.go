// Package common provides shared utilities for coinwatch
package common

import "time"

// Freshness TTLs per query kind. Market snapshots and simple prices move
// constantly; coin search results barely change at all.
const (
	FreshnessMarkets = 10 * time.Second
	FreshnessPrices  = 10 * time.Second
	FreshnessHistory = 5 * time.Minute
	FreshnessSearch  = 10 * time.Minute

	// PollInterval is the background refresh cadence for subscribed
	// snapshot and price queries, independent of the freshness windows.
	PollInterval = 30 * time.Second
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
