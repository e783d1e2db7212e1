// Package signal provides the decision engine that turns an indicator
// snapshot and the current holding into a BUY, SELL or HOLD decision.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/rules"
)

// Reasons emitted by the engine. Entry decisions carry a formatted reason.
const (
	ReasonStopLoss      = "stop loss"
	ReasonProfitTarget  = "profit target"
	ReasonMaxHold       = "max hold period"
	ReasonNoSignal      = "no signal"
	ReasonHolding       = "holding leveraged position"
	ReasonOutsideWindow = "outside trading window"
)

// MinConfirmations is how many of the rules.Checks confirmations an entry
// needs. It is fixed and not part of the advisory rule set.
const MinConfirmations = 4

// Decide is the rule itself: pure, no clock, no I/O. The first matching
// rule wins: a risk exit while leveraged, otherwise an entry check.
func Decide(snap model.Snapshot, pos model.PositionState, th rules.Thresholds) model.Decision {
	if pos.IsLeveraged {
		if d, ok := riskExit(snap, pos, th); ok {
			return d
		}
		return model.Decision{Action: model.Hold, Target: pos.Held, Reason: ReasonHolding, Confidence: 0.5}
	}
	return entry(snap, pos, th)
}

// riskExit checks stop loss, then profit target, then holding period.
func riskExit(snap model.Snapshot, pos model.PositionState, th rules.Thresholds) (model.Decision, bool) {
	pnl := pos.UnrealizedReturn(snap.Price(pos.Held))
	exit := func(reason string, confidence float64) (model.Decision, bool) {
		return model.Decision{Action: model.Sell, Target: model.Safe, Reason: reason, Confidence: confidence}, true
	}
	switch {
	case pnl <= -th.StopLoss:
		return exit(ReasonStopLoss, 1.0)
	case pnl >= th.ProfitTarget:
		return exit(ReasonProfitTarget, 1.0)
	case pos.DaysHeld >= th.MaxHoldDays:
		return exit(ReasonMaxHold, 0.8)
	}
	return model.Decision{}, false
}

type check struct {
	name string
	ok   bool
}

func entry(snap model.Snapshot, pos model.PositionState, th rules.Thresholds) model.Decision {
	var (
		target model.Instrument
		label  string
		checks []check
	)
	// Oversold is tested first, so it wins under degenerate bounds.
	switch {
	case snap.Oscillator < th.OversoldBound:
		target = model.LongLeveraged
		label = fmt.Sprintf("oversold (%.2f < %.2f)", snap.Oscillator, th.OversoldBound)
		checks = confirmations(snap, th, true)
	case snap.Oscillator > th.OverboughtBound:
		target = model.ShortLeveraged
		label = fmt.Sprintf("overbought (%.2f > %.2f)", snap.Oscillator, th.OverboughtBound)
		checks = confirmations(snap, th, false)
	default:
		return model.Decision{Action: model.Hold, Target: pos.Held, Reason: ReasonNoSignal, Confidence: 0.5}
	}

	passed := 0
	var failed []string
	for _, c := range checks {
		if c.ok {
			passed++
		} else {
			failed = append(failed, c.name)
		}
	}
	d := model.Decision{
		Target:     target,
		Confidence: clamp(float64(passed) / float64(len(checks))),
		Passed:     passed,
		Total:      len(checks),
	}
	reason := fmt.Sprintf("%s: %d/%d confirmations", label, passed, len(checks))
	if len(failed) > 0 {
		reason += " (failed " + strings.Join(failed, ", ") + ")"
	}
	if passed >= MinConfirmations {
		d.Action = model.Buy
	} else {
		d.Action = model.Hold
		d.Target = pos.Held
		reason += fmt.Sprintf(", need %d", MinConfirmations)
	}
	d.Reason = reason
	return d
}

// confirmations returns the six ordered checks. For a short entry the
// moving-average conditions are inverted. A moving-average check that the
// rule set does not require counts as passed.
func confirmations(snap model.Snapshot, th rules.Thresholds, long bool) []check {
	vsShort := snap.Close > snap.ShortMA
	vsLong := snap.Close > snap.LongMA
	maTrend := snap.ShortMA > snap.PrevShortMA
	if !long {
		vsShort = snap.Close < snap.ShortMA
		vsLong = snap.Close < snap.LongMA
		maTrend = snap.ShortMA < snap.PrevShortMA
	}
	return []check{
		{"trend_strength", snap.TrendStrength > th.MinTrendStrength},
		{"volatility_index", snap.VolatilityIndex < th.MaxVolatility},
		{"volume", snap.Volume > th.MinVolume},
		{"price_vs_short_ma", !th.RequirePriceVsShortMA || vsShort},
		{"price_vs_long_ma", !th.RequirePriceVsLongMA || vsLong},
		{"short_ma_trend", !th.RequireMATrend || maTrend},
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Engine wraps Decide with the live-only trading window guard.
type Engine struct {
	Thresholds rules.Thresholds
	// Window, when non-nil, restricts decisions to trading hours.
	Window *TradingWindow
	Now    func() time.Time
}

// NewEngine creates an Engine; window may be nil.
func NewEngine(th rules.Thresholds, window *TradingWindow) *Engine {
	return &Engine{Thresholds: th, Window: window, Now: time.Now}
}

// Decide applies the window guard, then the rule.
func (e *Engine) Decide(snap model.Snapshot, pos model.PositionState) model.Decision {
	if e.Window != nil {
		now := time.Now()
		if e.Now != nil {
			now = e.Now()
		}
		if !e.Window.Contains(now) {
			return model.Decision{Action: model.Hold, Target: pos.Held, Reason: ReasonOutsideWindow, Confidence: 1.0}
		}
	}
	return Decide(snap, pos, e.Thresholds)
}
