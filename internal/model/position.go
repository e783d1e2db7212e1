package model

import (
	"fmt"
	"math"
	"time"
)

// PositionState is the single holding tracked by the state machine.
// It is a value: every transition returns a new one.
type PositionState struct {
	Held        Instrument `json:"held"`
	Shares      float64    `json:"shares"`
	EntryPrice  float64    `json:"entry_price"`
	EntryDate   time.Time  `json:"entry_date"`
	DaysHeld    int        `json:"days_held"`
	IsLeveraged bool       `json:"is_leveraged"`
	Equity      float64    `json:"equity"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Validate checks the invariants a persisted or computed state must hold.
func (p PositionState) Validate() error {
	if !p.Held.Valid() {
		return fmt.Errorf("position: invalid held instrument %d", int(p.Held))
	}
	for name, v := range map[string]float64{"shares": p.Shares, "entry_price": p.EntryPrice, "equity": p.Equity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("position: %s is not finite", name)
		}
		if v < 0 {
			return fmt.Errorf("position: %s is negative (%v)", name, v)
		}
	}
	if p.Shares > 0 && p.EntryPrice <= 0 {
		return fmt.Errorf("position: entry price must be positive while holding %v shares", p.Shares)
	}
	if p.DaysHeld < 0 {
		return fmt.Errorf("position: days held is negative (%d)", p.DaysHeld)
	}
	if p.IsLeveraged != p.Held.IsLeveraged() {
		return fmt.Errorf("position: is_leveraged=%t inconsistent with held %s", p.IsLeveraged, p.Held)
	}
	return nil
}

// UnrealizedReturn is (price - entry) / entry; 0 when there is no entry.
func (p PositionState) UnrealizedReturn(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// EquityPoint is one mark of the equity curve.
type EquityPoint struct {
	Date           time.Time  `json:"date"`
	Equity         float64    `json:"equity"`
	Held           Instrument `json:"held"`
	BenchmarkClose float64    `json:"benchmark_close"`
}
