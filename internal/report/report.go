// Package report scores an equity curve and trade ledger.
package report

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// TradingDays is the annualization factor for daily returns.
const TradingDays = 252

// Options for Calculate.
type Options struct {
	InitialCapital float64
	// RiskFreeRate is annual, e.g. 0.02.
	RiskFreeRate float64
}

// Metrics は損益分析の結果を保持します。
type Metrics struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`
	TotalReturn    float64   `json:"total_return"`
	CAGR           float64   `json:"cagr"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	SortinoRatio   float64   `json:"sortino_ratio"`
	CalmarRatio    float64   `json:"calmar_ratio"`
	MaxDrawdown    float64   `json:"max_drawdown"`

	Returns   []float64 `json:"-"`
	Peaks     []float64 `json:"-"`
	Drawdowns []float64 `json:"-"`

	RoundTrips           []RoundTrip     `json:"round_trips,omitempty"`
	TotalTrades          int             `json:"total_trades"`
	WinningTrades        int             `json:"winning_trades"`
	LosingTrades         int             `json:"losing_trades"`
	WinRate              float64         `json:"win_rate"`
	TotalProfit          decimal.Decimal `json:"total_profit"`
	AverageProfit        decimal.Decimal `json:"average_profit"`
	AverageLoss          decimal.Decimal `json:"average_loss"`
	ProfitLossRatio      *float64        `json:"profit_loss_ratio"`
	ProfitFactor         *float64        `json:"profit_factor"`
	MaxConsecutiveWins   int             `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`
	AverageHoldingDays   float64         `json:"average_holding_days"`

	BuyAndHoldReturn   float64 `json:"buy_and_hold_return"`
	ReturnVsBuyAndHold float64 `json:"return_vs_buy_and_hold"`
}

// Calculate computes curve and trade statistics. A curve with fewer than two
// points yields zeroed ratios and FinalEquity equal to the initial capital.
func Calculate(curve []model.EquityPoint, trades []model.TradeRecord, opts Options) Metrics {
	m := Metrics{InitialCapital: opts.InitialCapital, FinalEquity: opts.InitialCapital}
	if m.InitialCapital <= 0 && len(curve) > 0 {
		m.InitialCapital = curve[0].Equity
		m.FinalEquity = m.InitialCapital
	}
	if len(curve) < 2 {
		if len(curve) == 1 {
			m.StartDate, m.EndDate = curve[0].Date, curve[0].Date
		}
		return m
	}

	first, last := curve[0], curve[len(curve)-1]
	m.StartDate, m.EndDate = first.Date, last.Date
	m.FinalEquity = last.Equity
	if m.InitialCapital > 0 {
		m.TotalReturn = m.FinalEquity/m.InitialCapital - 1
	}

	m.Returns = dailyReturns(curve)
	m.SharpeRatio = sharpeRatio(m.Returns, opts.RiskFreeRate)
	m.SortinoRatio = sortinoRatio(m.Returns, opts.RiskFreeRate)
	m.Peaks, m.Drawdowns, m.MaxDrawdown = drawdowns(curve)

	years := last.Date.Sub(first.Date).Hours() / 24 / 365.25
	if years > 0 && first.Equity > 0 && last.Equity > 0 {
		m.CAGR = math.Pow(last.Equity/first.Equity, 1/years) - 1
	}
	if m.MaxDrawdown < 0 {
		m.CalmarRatio = m.CAGR / math.Abs(m.MaxDrawdown)
	}

	if first.BenchmarkClose > 0 && last.BenchmarkClose > 0 {
		m.BuyAndHoldReturn = last.BenchmarkClose/first.BenchmarkClose - 1
		m.ReturnVsBuyAndHold = m.TotalReturn - m.BuyAndHoldReturn
	}

	m.applyTrades(PairRoundTrips(trades))
	return m
}

func dailyReturns(curve []model.EquityPoint) []float64 {
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, curve[i].Equity/prev-1)
	}
	return out
}

// drawdowns returns the running peak, (equity-peak)/peak per point and the
// minimum drawdown.
func drawdowns(curve []model.EquityPoint) (peaks, dd []float64, maxDD float64) {
	peaks = make([]float64, len(curve))
	dd = make([]float64, len(curve))
	peak := math.Inf(-1)
	for i, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		peaks[i] = peak
		if peak > 0 {
			dd[i] = (p.Equity - peak) / peak
		}
		if dd[i] < maxDD {
			maxDD = dd[i]
		}
	}
	return peaks, dd, maxDD
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		variance += math.Pow(x-mean, 2)
	}
	return mean, math.Sqrt(variance / float64(len(xs)))
}

// sharpeRatio は年率シャープレシオを計算します。
func sharpeRatio(returns []float64, riskFreeRate float64) float64 {
	mean, std := meanStd(returns)
	annualStd := std * math.Sqrt(TradingDays)
	if annualStd == 0 {
		return 0
	}
	return (mean*TradingDays - riskFreeRate) / annualStd
}

// sortinoRatio uses the downside deviation below a zero target.
func sortinoRatio(returns []float64, riskFreeRate float64) float64 {
	mean, _ := meanStd(returns)
	downside := 0.0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	if len(returns) == 0 || downside == 0 {
		return 0
	}
	annualDown := math.Sqrt(downside/float64(len(returns))) * math.Sqrt(TradingDays)
	return (mean*TradingDays - riskFreeRate) / annualDown
}

// FormatRatio renders an optional ratio, "undefined" when absent.
func FormatRatio(r *float64) string {
	if r == nil {
		return "undefined"
	}
	return strconv.FormatFloat(*r, 'f', 4, 64)
}
