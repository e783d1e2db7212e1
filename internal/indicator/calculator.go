// Copyright (c) 2024 OBI-Scalp-Bot
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package indicator derives the technical features the decision engine
// reads from an aligned, date-ordered table of bars.
package indicator

import (
	"errors"
	"fmt"

	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/pkg/logger"
)

// ErrInsufficientHistory is returned when there are fewer rows than the
// longest warm-up window. It is fatal for a backtest.
var ErrInsufficientHistory = errors.New("insufficient history for indicator warm-up")

// Params configures the indicator windows.
type Params struct {
	OscillatorPeriod int `yaml:"oscillator_period"`
	ShortMAPeriod    int `yaml:"short_ma_period"`
	LongMAPeriod     int `yaml:"long_ma_period"`
	TrendPeriod      int `yaml:"trend_period"`
}

// DefaultParams are the conventional RSI(14), SMA(20), SMA(50), ADX(14).
func DefaultParams() Params {
	return Params{OscillatorPeriod: 14, ShortMAPeriod: 20, LongMAPeriod: 50, TrendPeriod: 14}
}

// Validate checks every period is usable.
func (p Params) Validate() error {
	if p.OscillatorPeriod < 2 {
		return fmt.Errorf("oscillator_period must be >= 2, got %d", p.OscillatorPeriod)
	}
	if p.ShortMAPeriod < 1 {
		return fmt.Errorf("short_ma_period must be >= 1, got %d", p.ShortMAPeriod)
	}
	if p.LongMAPeriod < p.ShortMAPeriod {
		return fmt.Errorf("long_ma_period (%d) must be >= short_ma_period (%d)", p.LongMAPeriod, p.ShortMAPeriod)
	}
	if p.TrendPeriod < 2 {
		return fmt.Errorf("trend_period must be >= 2, got %d", p.TrendPeriod)
	}
	return nil
}

// WarmUp is the number of leading rows consumed before the first snapshot.
func (p Params) WarmUp() int {
	w := p.LongMAPeriod
	for _, n := range []int{2 * p.TrendPeriod, p.OscillatorPeriod + 1, p.ShortMAPeriod + 1} {
		if n > w {
			w = n
		}
	}
	return w
}

// Calculator turns aligned rows into snapshots.
type Calculator struct {
	params Params
}

// NewCalculator validates params and returns a Calculator.
func NewCalculator(params Params) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("indicator params: %w", err)
	}
	return &Calculator{params: params}, nil
}

// Params returns the windows the calculator was built with.
func (c *Calculator) Params() Params { return c.params }

// Calculate walks rows once, oldest first. Every indicator keeps its own
// rolling state, so the snapshot for row i depends only on rows 0..i.
// Rows before the warm-up completes are dropped, never zero-filled.
func (c *Calculator) Calculate(rows []model.AlignedRow) ([]model.Snapshot, error) {
	if need := c.params.WarmUp(); len(rows) < need {
		return nil, fmt.Errorf("%d rows available, %d required: %w", len(rows), need, ErrInsufficientHistory)
	}

	rsi := NewRSI(c.params.OscillatorPeriod)
	short := NewSMA(c.params.ShortMAPeriod)
	long := NewSMA(c.params.LongMAPeriod)
	adx := NewADX(c.params.TrendPeriod)

	out := make([]model.Snapshot, 0, len(rows)-c.params.WarmUp()+1)
	prevShort, havePrev := 0.0, false
	for _, row := range rows {
		bench, ok := row.Bars[model.Benchmark]
		if !ok {
			return nil, fmt.Errorf("row %s has no benchmark bar", row.Date.Format("2006-01-02"))
		}
		rsi.Update(bench.Close)
		short.Update(bench.Close)
		long.Update(bench.Close)
		adx.Update(bench.High, bench.Low, bench.Close)

		if rsi.Ready() && long.Ready() && adx.Ready() && short.Ready() && havePrev {
			snap := model.Snapshot{
				Date:            row.Date,
				Close:           bench.Close,
				High:            bench.High,
				Low:             bench.Low,
				VolatilityIndex: row.Bars[model.VolatilityIndex].Close,
				LongProxyClose:  row.Bars[model.LongProxy].Close,
				ShortProxyClose: row.Bars[model.ShortProxy].Close,
				Volume:          bench.Volume,
				Oscillator:      rsi.Value(),
				TrendStrength:   adx.Value(),
				ShortMA:         short.Value(),
				LongMA:          long.Value(),
				PrevShortMA:     prevShort,
			}
			if err := snap.Validate(); err != nil {
				logger.Warnf("Excluding row: %v", err)
			} else {
				out = append(out, snap)
			}
		}
		if short.Ready() {
			prevShort, havePrev = short.Value(), true
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no complete snapshot out of %d rows: %w", len(rows), ErrInsufficientHistory)
	}
	return out, nil
}
