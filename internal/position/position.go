// Package position implements the single-holding state machine that
// applies decisions to a PositionState.
package position

import (
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/pkg/logger"
)

// Machine applies decisions to a position. It keeps no state of its own;
// the caller owns the PositionState value.
type Machine struct {
	// TransactionCost is a fixed cash amount charged once per leg.
	TransactionCost float64
}

// NewMachine creates a new Machine instance.
func NewMachine(transactionCost float64) *Machine {
	return &Machine{TransactionCost: transactionCost}
}

// Open establishes the first position: all capital into SAFE, one BUY leg.
func (m *Machine) Open(capital float64, snap model.Snapshot) (model.PositionState, model.TradeRecord) {
	st := model.PositionState{Held: model.Safe}
	rec := m.buy(&st, model.Safe, capital, snap, "initial allocation")
	return st, rec
}

// Apply returns the state after decision d at snap, plus the ledger legs
// it produced. The input state is not modified.
func (m *Machine) Apply(d model.Decision, snap model.Snapshot, st model.PositionState) (model.PositionState, []model.TradeRecord) {
	next := st
	switch {
	case d.IsError():
		return m.hold(next, snap), nil
	case d.Action == model.Buy && d.Target.Valid() && d.Target != st.Held:
		return m.rotate(next, d.Target, snap, d.Reason)
	case d.Action == model.Sell && st.Held != model.Safe:
		return m.rotate(next, model.Safe, snap, d.Reason)
	case d.Action == model.Buy && !d.Target.Valid():
		logger.Warnf("position: ignoring BUY with invalid target %d", int(d.Target))
	}
	return m.hold(next, snap), nil
}

func (m *Machine) hold(st model.PositionState, snap model.Snapshot) model.PositionState {
	st.DaysHeld++
	st.Equity = st.Shares * snap.Price(st.Held)
	st.LastUpdated = snap.Date
	return st
}

// rotate liquidates the current holding and moves everything into target.
// The SELL leg is recorded even when nothing is left to sell.
func (m *Machine) rotate(st model.PositionState, target model.Instrument, snap model.Snapshot, reason string) (model.PositionState, []model.TradeRecord) {
	price := snap.Price(st.Held)
	cash, paid := m.charge(st.Shares * price)
	sell := model.TradeRecord{
		Date:          snap.Date,
		Action:        model.Sell,
		Instrument:    st.Held,
		Shares:        st.Shares,
		Price:         price,
		Cost:          paid,
		EquityAtEvent: cash,
		Reason:        reason,
	}
	return st, []model.TradeRecord{sell, m.buy(&st, target, cash, snap, reason)}
}

// buy spends all of cash, less one transaction cost, on target.
func (m *Machine) buy(st *model.PositionState, target model.Instrument, cash float64, snap model.Snapshot, reason string) model.TradeRecord {
	price := snap.Price(target)
	spend, paid := m.charge(cash)
	shares := 0.0
	if price > 0 {
		shares = spend / price
	}
	*st = model.PositionState{
		Held:        target,
		Shares:      shares,
		EntryPrice:  price,
		EntryDate:   snap.Date,
		DaysHeld:    0,
		IsLeveraged: target.IsLeveraged(),
		Equity:      shares * price,
		LastUpdated: snap.Date,
	}
	return model.TradeRecord{
		Date:          snap.Date,
		Action:        model.Buy,
		Instrument:    target,
		Shares:        shares,
		Price:         price,
		Cost:          paid,
		EquityAtEvent: st.Equity,
		Reason:        reason,
	}
}

// charge deducts one transaction cost, flooring cash at zero. paid is the
// amount actually deducted.
func (m *Machine) charge(cash float64) (net, paid float64) {
	if cash <= m.TransactionCost {
		return 0, cash
	}
	return cash - m.TransactionCost, m.TransactionCost
}
