// Package backtest folds the decision engine and the position state machine
// over a historical snapshot series.
package backtest

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/your-org/lev-meanrev-bot/internal/marketdata"
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/position"
	"github.com/your-org/lev-meanrev-bot/internal/rules"
	"github.com/your-org/lev-meanrev-bot/internal/signal"
)

// Options configures a run.
type Options struct {
	InitialCapital  float64
	TransactionCost float64
	// RunID tags the result; a random one is assigned when zero.
	RunID uuid.UUID
}

// Result is everything a run produces.
type Result struct {
	RunID     uuid.UUID
	Curve     []model.EquityPoint
	Trades    []model.TradeRecord
	Decisions []model.Decision
	Final     model.PositionState
}

// Run simulates snaps in order. The first snapshot establishes the SAFE
// position; every later one is decided and applied. One equity point is
// recorded per snapshot.
func Run(snaps []model.Snapshot, th rules.Thresholds, opts Options) (Result, error) {
	if len(snaps) == 0 {
		return Result{}, fmt.Errorf("backtest: no snapshots: %w", marketdata.ErrInsufficientData)
	}
	if opts.InitialCapital <= 0 {
		return Result{}, errors.New("backtest: initial capital must be positive")
	}
	if opts.TransactionCost < 0 {
		return Result{}, errors.New("backtest: transaction cost must not be negative")
	}
	if err := th.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		RunID:     opts.RunID,
		Curve:     make([]model.EquityPoint, 0, len(snaps)),
		Decisions: make([]model.Decision, 0, len(snaps)-1),
	}
	if res.RunID == uuid.Nil {
		res.RunID = uuid.New()
	}

	m := position.NewMachine(opts.TransactionCost)
	st, first := m.Open(opts.InitialCapital, snaps[0])
	res.Trades = append(res.Trades, first)
	res.Curve = append(res.Curve, point(snaps[0], st))

	for i, snap := range snaps[1:] {
		if !snap.Date.After(snaps[i].Date) {
			return Result{}, fmt.Errorf("backtest: snapshot %s is not after %s", snap.Date.Format("2006-01-02"), snaps[i].Date.Format("2006-01-02"))
		}
		d := signal.Decide(snap, st, th)
		var legs []model.TradeRecord
		st, legs = m.Apply(d, snap, st)
		res.Decisions = append(res.Decisions, d)
		res.Trades = append(res.Trades, legs...)
		res.Curve = append(res.Curve, point(snap, st))
	}
	res.Final = st
	return res, nil
}

func point(snap model.Snapshot, st model.PositionState) model.EquityPoint {
	return model.EquityPoint{
		Date:           snap.Date,
		Equity:         st.Equity,
		Held:           st.Held,
		BenchmarkClose: snap.Close,
	}
}
