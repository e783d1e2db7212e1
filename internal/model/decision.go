package model

import (
	"fmt"
	"time"
)

// Action is what the decision engine asks the state machine to do.
type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Decision is the output of the decision engine.
type Decision struct {
	Action     Action     `json:"action"`
	Target     Instrument `json:"target"`
	Reason     string     `json:"reason"`
	Confidence float64    `json:"confidence"`
	Passed     int        `json:"passed,omitempty"`
	Total      int        `json:"total,omitempty"`
	// Err is set only on a HOLD produced because the cycle failed.
	Err string `json:"error,omitempty"`
}

// IsError reports whether the decision stands in for a failed cycle.
func (d Decision) IsError() bool { return d.Err != "" }

// String renders a one-line summary.
func (d Decision) String() string {
	if d.IsError() {
		return fmt.Sprintf("%s %s (%s)", d.Action, d.Target, d.Reason)
	}
	return fmt.Sprintf("%s %s conf=%.3f (%s)", d.Action, d.Target, d.Confidence, d.Reason)
}

// ErrorHold builds the HOLD returned when a cycle aborts on err. It never
// carries confidence, so it cannot be mistaken for an engine signal.
func ErrorHold(held Instrument, err error) Decision {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return Decision{
		Action: Hold,
		Target: held,
		Reason: "error: " + msg,
		Err:    msg,
	}
}

// TradeRecord is one leg in the append-only trade ledger.
type TradeRecord struct {
	Date          time.Time  `json:"date"`
	Action        Action     `json:"action"`
	Instrument    Instrument `json:"instrument"`
	Shares        float64    `json:"shares"`
	Price         float64    `json:"price"`
	Cost          float64    `json:"cost"`
	EquityAtEvent float64    `json:"equity_at_event"`
	Reason        string     `json:"reason,omitempty"`
}
