package report

import (
	"github.com/shopspring/decimal"
	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// RoundTrip is a BUY matched with the next SELL of the same instrument.
type RoundTrip struct {
	Instrument   model.Instrument  `json:"instrument"`
	Entry        model.TradeRecord `json:"entry"`
	Exit         model.TradeRecord `json:"exit"`
	Profit       decimal.Decimal   `json:"profit"`
	ProfitPct    float64           `json:"profit_pct"`
	DurationDays float64           `json:"duration_days"`
}

// PairRoundTrips matches ledger legs in order. A BUY still open at the end
// of the ledger is not a round trip.
func PairRoundTrips(trades []model.TradeRecord) []RoundTrip {
	open := map[model.Instrument]model.TradeRecord{}
	var out []RoundTrip
	for _, tr := range trades {
		switch tr.Action {
		case model.Buy:
			if _, ok := open[tr.Instrument]; !ok {
				open[tr.Instrument] = tr
			}
		case model.Sell:
			entry, ok := open[tr.Instrument]
			if !ok {
				continue
			}
			delete(open, tr.Instrument)
			out = append(out, newRoundTrip(entry, tr))
		}
	}
	return out
}

func newRoundTrip(entry, exit model.TradeRecord) RoundTrip {
	outlay := decimal.NewFromFloat(entry.Shares).Mul(decimal.NewFromFloat(entry.Price)).Add(decimal.NewFromFloat(entry.Cost))
	proceeds := decimal.NewFromFloat(exit.Shares).Mul(decimal.NewFromFloat(exit.Price)).Sub(decimal.NewFromFloat(exit.Cost))
	profit := proceeds.Sub(outlay)
	pct := 0.0
	if outlay.IsPositive() {
		pct = profit.Div(outlay).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return RoundTrip{
		Instrument:   entry.Instrument,
		Entry:        entry,
		Exit:         exit,
		Profit:       profit,
		ProfitPct:    pct,
		DurationDays: exit.Date.Sub(entry.Date).Hours() / 24,
	}
}

func (m *Metrics) applyTrades(trips []RoundTrip) {
	m.RoundTrips = trips
	m.TotalTrades = len(trips)
	if len(trips) == 0 {
		return
	}

	var totalProfit, totalLoss decimal.Decimal
	var consecutiveWins, consecutiveLosses int
	holding := 0.0
	for _, rt := range trips {
		m.TotalProfit = m.TotalProfit.Add(rt.Profit)
		holding += rt.DurationDays
		switch {
		case rt.Profit.IsPositive():
			m.WinningTrades++
			totalProfit = totalProfit.Add(rt.Profit)
			consecutiveWins++
			consecutiveLosses = 0
		case rt.Profit.IsNegative():
			m.LosingTrades++
			totalLoss = totalLoss.Add(rt.Profit)
			consecutiveLosses++
			consecutiveWins = 0
		default:
			consecutiveWins, consecutiveLosses = 0, 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, consecutiveWins)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, consecutiveLosses)
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.AverageHoldingDays = holding / float64(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AverageProfit = totalProfit.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = totalLoss.Div(decimal.NewFromInt(int64(m.LosingTrades)))
		plr := m.AverageProfit.Abs().Div(m.AverageLoss.Abs()).InexactFloat64()
		pf := totalProfit.Div(totalLoss.Abs()).InexactFloat64()
		m.ProfitLossRatio = &plr
		m.ProfitFactor = &pf
	}
}
