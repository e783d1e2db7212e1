// Package rules holds the rule thresholds the decision engine runs on and
// validates them on receipt from the advisory source.
package rules

import (
	"errors"
	"fmt"
	"math"
)

// Checks is the number of confirmation checks evaluated on an entry signal.
const Checks = 6

// ErrConfiguration marks a malformed or incomplete rule set.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError describes why a rule set was rejected.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Thresholds is the closed rule set read by the decision engine. It is
// read-only for the duration of a run.
type Thresholds struct {
	OversoldBound    float64 `json:"oversold_bound" yaml:"oversold_bound"`
	OverboughtBound  float64 `json:"overbought_bound" yaml:"overbought_bound"`
	MinTrendStrength float64 `json:"min_trend_strength" yaml:"min_trend_strength"`
	MaxVolatility    float64 `json:"max_volatility_index" yaml:"max_volatility_index"`
	MinVolume        float64 `json:"min_volume" yaml:"min_volume"`

	RequirePriceVsShortMA bool `json:"require_price_vs_short_ma" yaml:"require_price_vs_short_ma"`
	RequirePriceVsLongMA  bool `json:"require_price_vs_long_ma" yaml:"require_price_vs_long_ma"`
	RequireMATrend        bool `json:"require_ma_trend" yaml:"require_ma_trend"`

	StopLoss     float64 `json:"stop_loss_fraction" yaml:"stop_loss_fraction"`
	ProfitTarget float64 `json:"profit_target_fraction" yaml:"profit_target_fraction"`
	MaxHoldDays  int     `json:"max_hold_days" yaml:"max_hold_days"`
}

// Validate re-checks the ranges enforced by the schema so that rule sets
// built in code get the same guarantees as parsed ones.
func (t Thresholds) Validate() error {
	bounded := []struct {
		name     string
		v        float64
		min, max float64
	}{
		{"oversold_bound", t.OversoldBound, 0, 100},
		{"overbought_bound", t.OverboughtBound, 0, 100},
		{"min_trend_strength", t.MinTrendStrength, 0, 100},
		{"min_volume", t.MinVolume, 0, math.MaxFloat64},
		{"profit_target_fraction", t.ProfitTarget, 0, math.MaxFloat64},
	}
	for _, b := range bounded {
		if math.IsNaN(b.v) || b.v < b.min || b.v > b.max {
			return &ConfigurationError{Field: b.name, Reason: fmt.Sprintf("%v outside [%v, %v]", b.v, b.min, b.max)}
		}
	}
	if math.IsNaN(t.MaxVolatility) || t.MaxVolatility <= 0 {
		return &ConfigurationError{Field: "max_volatility_index", Reason: "must be positive"}
	}
	if math.IsNaN(t.StopLoss) || t.StopLoss <= 0 || t.StopLoss > 1 {
		return &ConfigurationError{Field: "stop_loss_fraction", Reason: fmt.Sprintf("%v outside (0, 1]", t.StopLoss)}
	}
	if t.ProfitTarget == 0 {
		return &ConfigurationError{Field: "profit_target_fraction", Reason: "must be positive"}
	}
	if t.MaxHoldDays < 1 {
		return &ConfigurationError{Field: "max_hold_days", Reason: fmt.Sprintf("must be >= 1, got %d", t.MaxHoldDays)}
	}
	return nil
}
