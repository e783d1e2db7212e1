package model

import (
	"fmt"
	"math"
	"time"
)

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is the ordered bar history of one ticker.
type Series struct {
	Ticker string
	Bars   []Bar
}

// AlignedRow holds one bar per role for a date every role traded on.
type AlignedRow struct {
	Date time.Time
	Bars map[Role]Bar
}

// Day truncates t to its calendar date in UTC. Bars are keyed by day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Snapshot is the fully formed indicator reading for one aligned row.
type Snapshot struct {
	Date            time.Time `json:"date"`
	Close           float64   `json:"close"`
	High            float64   `json:"high"`
	Low             float64   `json:"low"`
	VolatilityIndex float64   `json:"volatility_index"`
	LongProxyClose  float64   `json:"long_proxy_close"`
	ShortProxyClose float64   `json:"short_proxy_close"`
	Volume          float64   `json:"volume"`
	Oscillator      float64   `json:"oscillator"`
	TrendStrength   float64   `json:"trend_strength"`
	ShortMA         float64   `json:"short_ma"`
	LongMA          float64   `json:"long_ma"`
	PrevShortMA     float64   `json:"prev_short_ma"`
}

// Price returns the close that marks the given instrument.
func (s Snapshot) Price(i Instrument) float64 {
	switch i {
	case LongLeveraged:
		return s.LongProxyClose
	case ShortLeveraged:
		return s.ShortProxyClose
	default:
		return s.Close
	}
}

// Validate rejects snapshots with missing or non-finite readings.
func (s Snapshot) Validate() error {
	if s.Date.IsZero() {
		return fmt.Errorf("snapshot: missing date")
	}
	positive := map[string]float64{
		"close":             s.Close,
		"long_proxy_close":  s.LongProxyClose,
		"short_proxy_close": s.ShortProxyClose,
		"short_ma":          s.ShortMA,
		"long_ma":           s.LongMA,
		"prev_short_ma":     s.PrevShortMA,
	}
	for name, v := range positive {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("snapshot %s: %s must be positive, got %v", s.Date.Format("2006-01-02"), name, v)
		}
	}
	finite := map[string]float64{
		"volatility_index": s.VolatilityIndex,
		"volume":           s.Volume,
		"oscillator":       s.Oscillator,
		"trend_strength":   s.TrendStrength,
	}
	for name, v := range finite {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("snapshot %s: %s must be finite and non-negative, got %v", s.Date.Format("2006-01-02"), name, v)
		}
	}
	return nil
}
