package models

import (
	"fmt"
	"time"
)

// AlertDirection says which way the price has to cross the target.
type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// Valid reports whether the direction is one of the two known values.
func (d AlertDirection) Valid() bool {
	return d == AlertAbove || d == AlertBelow
}

// AlertStatus is the lifecycle state of an alert record.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
)

// Alert is a declarative price-crossing record. Records are append-only:
// the only mutation after creation is the active -> triggered transition.
type Alert struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	CoinSymbol  string         `json:"coin_symbol"`
	TargetPrice float64        `json:"target_price"`
	Direction   AlertDirection `json:"direction"`
	Status      AlertStatus    `json:"status"`
	// Deviation is the signed percentage distance between the target and
	// the coin price at creation time, rounded to two decimals.
	Deviation   float64   `json:"deviation"`
	CreatedAt   time.Time `json:"created_at"`
	TriggeredAt time.Time `json:"triggered_at,omitempty"`
}

// DeviationLabel renders the creation-time deviation as "+12.50%".
func (a *Alert) DeviationLabel() string {
	return fmt.Sprintf("%+.2f%%", a.Deviation)
}

// AlertRequest is the user-submitted input for creating an alert.
// TargetPrice arrives as entered, unparsed; CurrentPrice is the latest
// fetched price for the coin (zero when unknown).
type AlertRequest struct {
	CoinSymbol   string         `json:"coin_symbol"`
	TargetPrice  string         `json:"target_price"`
	Direction    AlertDirection `json:"direction"`
	CurrentPrice float64        `json:"current_price"`
}
