// Package engine runs the live decision cycle: load the persisted position,
// read the latest indicator snapshot, decide, apply and save.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/alert"
	"github.com/your-org/lev-meanrev-bot/internal/indicator"
	"github.com/your-org/lev-meanrev-bot/internal/marketdata"
	"github.com/your-org/lev-meanrev-bot/internal/metrics"
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/position"
	"github.com/your-org/lev-meanrev-bot/internal/rules"
	"github.com/your-org/lev-meanrev-bot/internal/runlock"
	"github.com/your-org/lev-meanrev-bot/internal/signal"
	"github.com/your-org/lev-meanrev-bot/internal/state"
	"github.com/your-org/lev-meanrev-bot/pkg/logger"
)

// Reasons for decisions the cycle produces without consulting the rule.
const (
	ReasonInitialAllocation = "initial allocation"
	ReasonAlreadyApplied    = "snapshot already applied"
)

// DecisionLog records every decision a cycle returns.
type DecisionLog interface {
	SaveDecision(ctx context.Context, at time.Time, snapshotDate time.Time, d model.Decision) error
}

// Quarantiner is implemented by stores that can move a corrupted state
// aside before it is replaced.
type Quarantiner interface {
	Quarantine() (string, error)
}

// Outcome is what one cycle did.
type Outcome struct {
	Decision model.Decision      `json:"decision"`
	Snapshot model.Snapshot      `json:"snapshot"`
	State    model.PositionState `json:"state"`
	Trades   []model.TradeRecord `json:"trades"`
	// Saved is false when nothing was persisted: error holds, stale
	// snapshots and cycles outside the trading window.
	Saved bool `json:"saved"`
}

// Cycle holds the collaborators of the live path. Notifier, Metrics,
// Decisions and Window are optional.
type Cycle struct {
	Universe       model.Universe
	Source         marketdata.Source
	Calculator     *indicator.Calculator
	Rules          rules.Source
	Store          state.Store
	Locker         runlock.Locker
	Machine        *position.Machine
	Window         *signal.TradingWindow
	InitialCapital float64
	LookbackDays   int
	// ResetState lets a corrupted persisted state be replaced by a fresh
	// SAFE allocation. Without it corruption aborts every cycle.
	ResetState bool

	Notifier  alert.Notifier
	Metrics   *metrics.Metrics
	Decisions DecisionLog
	Now       func() time.Time
}

func (c *Cycle) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Run executes exactly one cycle. On failure it returns an error hold next
// to the error and leaves the persisted state untouched.
func (c *Cycle) Run(ctx context.Context) (Outcome, error) {
	release, err := c.Locker.TryLock(ctx)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) && c.Metrics != nil {
			c.Metrics.LockContention.Inc()
		}
		logger.Warnf("[Live] Cycle skipped: %v", err)
		return Outcome{Decision: model.ErrorHold(model.Unknown, err)}, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			logger.Errorf("[Live] Failed to release run lock: %v", err)
		}
	}()

	started := c.now()
	out, err := c.run(ctx, started)
	if err != nil {
		out.Decision = model.ErrorHold(out.State.Held, err)
		out.Trades = nil
		out.Saved = false
		logger.Errorf("[Live] Cycle failed: %v", err)
	} else {
		logger.Infof("[Live] %s", out.Decision)
	}
	c.publish(ctx, out, started)
	return out, err
}

func (c *Cycle) run(ctx context.Context, now time.Time) (Outcome, error) {
	var out Outcome
	st, fresh, err := c.load(ctx)
	if err != nil {
		return out, err
	}
	out.State = st

	snap, err := c.latestSnapshot(ctx, now)
	if err != nil {
		return out, err
	}
	out.Snapshot = snap

	th, err := c.Rules.Fetch(ctx)
	if err != nil {
		return out, fmt.Errorf("fetch rules: %w", err)
	}

	if fresh {
		st, leg := c.Machine.Open(c.InitialCapital, snap)
		out.Decision = model.Decision{Action: model.Buy, Target: model.Safe, Reason: ReasonInitialAllocation, Confidence: 1.0}
		out.Trades = []model.TradeRecord{leg}
		return c.save(ctx, out, st)
	}

	if !snap.Date.After(st.LastUpdated) {
		out.Decision = model.Decision{Action: model.Hold, Target: st.Held, Reason: ReasonAlreadyApplied, Confidence: 1.0}
		return out, nil
	}

	eng := signal.NewEngine(th, c.Window)
	eng.Now = c.now
	out.Decision = eng.Decide(snap, st)
	if out.Decision.Reason == signal.ReasonOutsideWindow {
		return out, nil
	}

	next, legs := c.Machine.Apply(out.Decision, snap, st)
	out.Trades = legs
	return c.save(ctx, out, next)
}

func (c *Cycle) save(ctx context.Context, out Outcome, st model.PositionState) (Outcome, error) {
	if err := c.Store.Save(ctx, st); err != nil {
		return out, fmt.Errorf("save state: %w", err)
	}
	out.State = st
	out.Saved = true
	return out, nil
}

// load returns the persisted state, or fresh=true when the cycle should
// open a new SAFE allocation.
func (c *Cycle) load(ctx context.Context) (model.PositionState, bool, error) {
	st, err := c.Store.Load(ctx)
	switch {
	case err == nil:
		return st, false, nil
	case errors.Is(err, state.ErrNoState):
		logger.Infof("[Live] No persisted state, starting with an initial allocation")
		return model.PositionState{}, true, nil
	case errors.Is(err, state.ErrStateCorruption) && c.ResetState:
		if q, ok := c.Store.(Quarantiner); ok {
			moved, qErr := q.Quarantine()
			if qErr != nil {
				return model.PositionState{}, false, fmt.Errorf("quarantine corrupted state: %w", qErr)
			}
			logger.Warnf("[Live] Corrupted state moved to %s", moved)
		}
		logger.Warnf("[Live] Resetting corrupted state: %v", err)
		return model.PositionState{}, true, nil
	default:
		return model.PositionState{}, false, fmt.Errorf("load state: %w", err)
	}
}

func (c *Cycle) latestSnapshot(ctx context.Context, now time.Time) (model.Snapshot, error) {
	start := now.AddDate(0, 0, -c.LookbackDays)
	series, err := marketdata.FetchUniverse(ctx, c.Source, c.Universe, start, now)
	if err != nil {
		return model.Snapshot{}, err
	}
	rows, err := marketdata.Align(series)
	if err != nil {
		return model.Snapshot{}, err
	}
	snaps, err := c.Calculator.Calculate(rows)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return model.Snapshot{}, fmt.Errorf("no valid snapshot in %d aligned rows: %w", len(rows), marketdata.ErrInsufficientData)
	}
	return snaps[len(snaps)-1], nil
}

func (c *Cycle) publish(ctx context.Context, out Outcome, started time.Time) {
	if c.Metrics != nil {
		c.Metrics.ObserveCycle(out.Decision, out.State, started, c.now())
	}
	if c.Notifier != nil {
		if err := c.Notifier.Send(alert.FormatDecision(out.Decision, out.State)); err != nil {
			logger.Errorf("[Live] Failed to send notification: %v", err)
		}
	}
	if c.Decisions != nil {
		if err := c.Decisions.SaveDecision(ctx, started, out.Snapshot.Date, out.Decision); err != nil {
			logger.Errorf("[Live] Failed to record decision: %v", err)
		}
	}
}
