// Package watchlist manages the user's tracked coin set
package watchlist

import (
	"strings"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/interfaces"
	"github.com/coinwatch/coinwatch/internal/localstate"
)

// StorageKey is the durable slot name for the watchlist. Chosen disjoint
// from every other slot key by construction.
const StorageKey = "crypto-watchlist"

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// Service implements WatchlistService on a durable slot. The list is
// ordered by insertion and never contains duplicates.
type Service struct {
	slot   *localstate.Slot[[]string]
	logger *common.Logger
}

// NewService creates a new watchlist service.
func NewService(slot *localstate.Slot[[]string], logger *common.Logger) *Service {
	return &Service{
		slot:   slot,
		logger: logger,
	}
}

// Coins returns a copy of the current watchlist.
func (s *Service) Coins() []string {
	cur := s.slot.Get()
	out := make([]string, len(cur))
	copy(out, cur)
	return out
}

// Contains reports whether the coin is on the watchlist.
func (s *Service) Contains(coinID string) bool {
	coinID = normalize(coinID)
	for _, id := range s.slot.Get() {
		if id == coinID {
			return true
		}
	}
	return false
}

// Add appends the coin unless it is already present (no-op in that case).
func (s *Service) Add(coinID string) []string {
	coinID = normalize(coinID)
	result := s.slot.Update(func(cur []string) []string {
		if indexOf(cur, coinID) >= 0 {
			return cur
		}
		next := make([]string, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, coinID)
	})
	s.logger.Debug().Str("coin", coinID).Int("size", len(result)).Msg("Watchlist add")
	return result
}

// Remove deletes the coin from the watchlist; unknown coins are a no-op.
func (s *Service) Remove(coinID string) []string {
	coinID = normalize(coinID)
	result := s.slot.Update(func(cur []string) []string {
		idx := indexOf(cur, coinID)
		if idx < 0 {
			return cur
		}
		next := make([]string, 0, len(cur)-1)
		next = append(next, cur[:idx]...)
		next = append(next, cur[idx+1:]...)
		return next
	})
	s.logger.Debug().Str("coin", coinID).Int("size", len(result)).Msg("Watchlist remove")
	return result
}

// Toggle adds the coin when absent and removes it when present.
func (s *Service) Toggle(coinID string) []string {
	coinID = normalize(coinID)
	return s.slot.Update(func(cur []string) []string {
		idx := indexOf(cur, coinID)
		if idx >= 0 {
			next := make([]string, 0, len(cur)-1)
			next = append(next, cur[:idx]...)
			next = append(next, cur[idx+1:]...)
			return next
		}
		next := make([]string, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, coinID)
	})
}

func normalize(coinID string) string {
	return strings.ToLower(strings.TrimSpace(coinID))
}

func indexOf(list []string, coinID string) int {
	for i, id := range list {
		if id == coinID {
			return i
		}
	}
	return -1
}
