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

package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lev-meanrev-bot/internal/model"
)

func TestSMA(t *testing.T) {
	s := NewSMA(3)
	for i, v := range []float64{1, 2} {
		s.Update(v)
		assert.False(t, s.Ready(), "step %d", i)
	}
	s.Update(3)
	require.True(t, s.Ready())
	assert.InDelta(t, 2.0, s.Value(), 1e-12)
	s.Update(10)
	assert.InDelta(t, 5.0, s.Value(), 1e-12)
}

func TestRSI_Bounds(t *testing.T) {
	up := NewRSI(5)
	down := NewRSI(5)
	for i := 0; i < 20; i++ {
		up.Update(100 + float64(i))
		down.Update(100 - float64(i))
	}
	require.True(t, up.Ready())
	assert.Equal(t, 100.0, up.Value())
	assert.Equal(t, 0.0, down.Value())

	flat := NewRSI(3)
	for i := 0; i < 5; i++ {
		flat.Update(42)
	}
	assert.Equal(t, 50.0, flat.Value())
}

func TestRSI_ReadyAfterPeriodPlusOne(t *testing.T) {
	r := NewRSI(14)
	for i := 0; i < 14; i++ {
		r.Update(float64(100 + i%3))
		assert.False(t, r.Ready())
	}
	r.Update(101)
	assert.True(t, r.Ready())
	assert.GreaterOrEqual(t, r.Value(), 0.0)
	assert.LessOrEqual(t, r.Value(), 100.0)
}

func TestADX_SteadyTrend(t *testing.T) {
	a := NewADX(5)
	for i := 0; i < 9; i++ {
		p := 100 + float64(i)
		a.Update(p+1, p-1, p)
		assert.False(t, a.Ready(), "bar %d", i)
	}
	a.Update(110, 108, 109)
	require.True(t, a.Ready(), "ADX(5) is ready after 10 bars")
	assert.InDelta(t, 100.0, a.Value(), 1e-9)
}

func TestADX_Bounded(t *testing.T) {
	a := NewADX(7)
	for i := 0; i < 200; i++ {
		p := 100 + 10*math.Sin(float64(i)/5)
		a.Update(p+1+math.Abs(math.Cos(float64(i))), p-1, p)
		if a.Ready() {
			assert.GreaterOrEqual(t, a.Value(), 0.0)
			assert.LessOrEqual(t, a.Value(), 100.0)
		}
	}
}

func syntheticRows(n int) []model.AlignedRow {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]model.AlignedRow, n)
	for i := range rows {
		p := 300 + 20*math.Sin(float64(i)/7) + float64(i)*0.1
		rows[i] = model.AlignedRow{
			Date: start.AddDate(0, 0, i),
			Bars: map[model.Role]model.Bar{
				model.Benchmark:       {Date: start.AddDate(0, 0, i), Open: p, High: p + 2, Low: p - 2, Close: p, Volume: 1e6 + float64(i)},
				model.LongProxy:       {Close: p / 5},
				model.ShortProxy:      {Close: 3000 / p},
				model.VolatilityIndex: {Close: 20 + 5*math.Cos(float64(i)/9)},
			},
		}
	}
	return rows
}

func TestCalculator_WarmUpTruncation(t *testing.T) {
	params := Params{OscillatorPeriod: 14, ShortMAPeriod: 10, LongMAPeriod: 30, TrendPeriod: 14}
	require.Equal(t, 30, params.WarmUp())
	calc, err := NewCalculator(params)
	require.NoError(t, err)

	rows := syntheticRows(100)
	snaps, err := calc.Calculate(rows)
	require.NoError(t, err)
	require.Len(t, snaps, 100-params.WarmUp()+1)
	assert.Equal(t, rows[params.WarmUp()-1].Date, snaps[0].Date)

	for i, s := range snaps {
		require.NoError(t, s.Validate(), "snapshot %d", i)
		assert.GreaterOrEqual(t, s.Oscillator, 0.0)
		assert.LessOrEqual(t, s.Oscillator, 100.0)
		assert.GreaterOrEqual(t, s.TrendStrength, 0.0)
		assert.LessOrEqual(t, s.TrendStrength, 100.0)
		if i > 0 {
			assert.Equal(t, snaps[i-1].ShortMA, s.PrevShortMA)
		}
	}
}

func TestCalculator_TrendDominatesWarmUp(t *testing.T) {
	params := Params{OscillatorPeriod: 5, ShortMAPeriod: 5, LongMAPeriod: 10, TrendPeriod: 20}
	assert.Equal(t, 40, params.WarmUp())
	calc, err := NewCalculator(params)
	require.NoError(t, err)

	snaps, err := calc.Calculate(syntheticRows(40))
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestCalculator_InsufficientHistory(t *testing.T) {
	calc, err := NewCalculator(DefaultParams())
	require.NoError(t, err)
	_, err = calc.Calculate(syntheticRows(DefaultParams().WarmUp() - 1))
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

// Mutating or dropping rows after i never changes snapshots up to i.
func TestCalculator_Causality(t *testing.T) {
	calc, err := NewCalculator(DefaultParams())
	require.NoError(t, err)

	full := syntheticRows(160)
	want, err := calc.Calculate(full)
	require.NoError(t, err)

	for _, cut := range []int{DefaultParams().WarmUp(), 80, 120, 159} {
		prefix := make([]model.AlignedRow, len(full))
		copy(prefix, full)
		for i := cut; i < len(prefix); i++ {
			bars := map[model.Role]model.Bar{}
			for r, b := range prefix[i].Bars {
				b.Close *= 3
				b.High *= 3
				b.Low *= 0.5
				bars[r] = b
			}
			prefix[i] = model.AlignedRow{Date: prefix[i].Date, Bars: bars}
		}

		mutated, err := calc.Calculate(prefix)
		require.NoError(t, err)
		truncated, err := calc.Calculate(full[:cut])
		require.NoError(t, err)

		n := cut - DefaultParams().WarmUp() + 1
		require.Len(t, truncated, n)
		if diff := cmp.Diff(want[:n], truncated); diff != "" {
			t.Errorf("truncated at %d differs (-want +got):\n%s", cut, diff)
		}
		if diff := cmp.Diff(want[:n], mutated[:n]); diff != "" {
			t.Errorf("mutated tail from %d leaked (-want +got):\n%s", cut, diff)
		}
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	bad := DefaultParams()
	bad.LongMAPeriod = 5
	assert.Error(t, bad.Validate())
	_, err := NewCalculator(Params{})
	assert.Error(t, err)
}
