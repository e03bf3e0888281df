// Package alert manages price alert records
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/interfaces"
	"github.com/coinwatch/coinwatch/internal/localstate"
	"github.com/coinwatch/coinwatch/internal/models"
)

// StorageKey is the durable slot name for the alert collection.
const StorageKey = "crypto-alerts"

// defaultUserID is the placeholder owner marker; there is no multi-user
// support.
const defaultUserID = "local"

// ValidationError rejects malformed alert input before any record exists.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert %s: %s", e.Field, e.Reason)
}

// Compile-time interface check
var _ interfaces.AlertService = (*Service)(nil)

// Service implements AlertService on a durable slot. Records are
// append-only; the only mutation is the active -> triggered transition
// performed by Evaluate.
type Service struct {
	slot   *localstate.Slot[[]models.Alert]
	logger *common.Logger
	now    func() time.Time // injectable clock for testing
	newID  func() string
}

// NewService creates a new alert service.
func NewService(slot *localstate.Slot[[]models.Alert], logger *common.Logger) *Service {
	return &Service{
		slot:   slot,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create validates the request and appends a new active alert. The target
// price must parse as a positive decimal; anything else is refused before
// a record is constructed.
func (s *Service) Create(req models.AlertRequest) (*models.Alert, error) {
	symbol := strings.ToLower(strings.TrimSpace(req.CoinSymbol))
	if symbol == "" {
		return nil, &ValidationError{Field: "coin_symbol", Reason: "must not be empty"}
	}

	target, err := decimal.NewFromString(strings.TrimSpace(req.TargetPrice))
	if err != nil {
		return nil, &ValidationError{Field: "target_price", Reason: "not a well-formed number"}
	}
	if !target.IsPositive() {
		return nil, &ValidationError{Field: "target_price", Reason: "must be positive"}
	}

	if !req.Direction.Valid() {
		return nil, &ValidationError{Field: "direction", Reason: "must be 'above' or 'below'"}
	}

	record := models.Alert{
		ID:          s.newID(),
		UserID:      defaultUserID,
		CoinSymbol:  symbol,
		TargetPrice: target.InexactFloat64(),
		Direction:   req.Direction,
		Status:      models.AlertActive,
		Deviation:   deviationPct(target, req.CurrentPrice),
		CreatedAt:   s.now(),
	}

	s.slot.Update(func(cur []models.Alert) []models.Alert {
		next := make([]models.Alert, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, record)
	})

	s.logger.Info().
		Str("coin", symbol).
		Float64("target", record.TargetPrice).
		Str("direction", string(record.Direction)).
		Str("deviation", record.DeviationLabel()).
		Msg("Alert created")

	return &record, nil
}

// List returns a copy of all alert records, oldest first.
func (s *Service) List() []models.Alert {
	cur := s.slot.Get()
	out := make([]models.Alert, len(cur))
	copy(out, cur)
	return out
}

// Active returns only the alerts still waiting to trigger.
func (s *Service) Active() []models.Alert {
	var out []models.Alert
	for _, a := range s.slot.Get() {
		if a.Status == models.AlertActive {
			out = append(out, a)
		}
	}
	return out
}

// Evaluate compares every active alert against the latest snapshot prices
// and transitions crossed ones to triggered. There is no delivery; the
// status change is the whole effect. Returns the newly triggered records.
func (s *Service) Evaluate(assets []models.Asset) []models.Alert {
	if len(assets) == 0 {
		return nil
	}

	priceBySymbol := make(map[string]float64, len(assets))
	for _, a := range assets {
		priceBySymbol[strings.ToLower(a.Symbol)] = a.CurrentPrice
	}

	var triggered []models.Alert
	now := s.now()

	s.slot.Update(func(cur []models.Alert) []models.Alert {
		next := make([]models.Alert, len(cur))
		copy(next, cur)
		for i := range next {
			if next[i].Status != models.AlertActive {
				continue
			}
			price, ok := priceBySymbol[next[i].CoinSymbol]
			if !ok {
				continue
			}
			if crossed(&next[i], price) {
				next[i].Status = models.AlertTriggered
				next[i].TriggeredAt = now
				triggered = append(triggered, next[i])
			}
		}
		return next
	})

	for _, a := range triggered {
		s.logger.Info().
			Str("coin", a.CoinSymbol).
			Float64("target", a.TargetPrice).
			Str("direction", string(a.Direction)).
			Msg("Alert triggered")
	}

	return triggered
}

func crossed(a *models.Alert, price float64) bool {
	switch a.Direction {
	case models.AlertAbove:
		return price >= a.TargetPrice
	case models.AlertBelow:
		return price <= a.TargetPrice
	}
	return false
}

// deviationPct computes the signed percentage distance from the current
// price to the target, rounded to two decimals. Zero when the current
// price is unknown.
func deviationPct(target decimal.Decimal, currentPrice float64) float64 {
	if currentPrice <= 0 {
		return 0
	}
	current := decimal.NewFromFloat(currentPrice)
	return target.Sub(current).
		Div(current).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}
