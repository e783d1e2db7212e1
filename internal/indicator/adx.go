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

import "math"

// ADX is Wilder's average directional index, a direction-free measure of
// trend strength in [0,100]. It needs 2*period bars before it is ready:
// period bars of smoothed directional movement, then period DX values.
type ADX struct {
	period int

	bars                  int
	prevHigh, prevLow     float64
	prevClose             float64
	smTR, smPlus, smMinus float64

	dxCount int
	dxSum   float64
	current float64
}

// NewADX creates an ADX with the given smoothing period.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Update feeds the next bar.
func (a *ADX) Update(high, low, close float64) {
	a.bars++
	if a.bars == 1 {
		a.prevHigh, a.prevLow, a.prevClose = high, low, close
		return
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	up := high - a.prevHigh
	down := a.prevLow - low
	plusDM, minusDM := 0.0, 0.0
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	a.prevHigh, a.prevLow, a.prevClose = high, low, close

	p := float64(a.period)
	moves := a.bars - 1
	if moves <= a.period {
		a.smTR += tr
		a.smPlus += plusDM
		a.smMinus += minusDM
		if moves < a.period {
			return
		}
	} else {
		a.smTR = a.smTR - a.smTR/p + tr
		a.smPlus = a.smPlus - a.smPlus/p + plusDM
		a.smMinus = a.smMinus - a.smMinus/p + minusDM
	}

	dx := a.dx()
	a.dxCount++
	if a.dxCount <= a.period {
		a.dxSum += dx
		if a.dxCount == a.period {
			a.current = a.dxSum / p
		}
		return
	}
	a.current = (a.current*(p-1) + dx) / p
}

func (a *ADX) dx() float64 {
	if a.smTR == 0 {
		return 0
	}
	plusDI := 100 * a.smPlus / a.smTR
	minusDI := 100 * a.smMinus / a.smTR
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}

// Value returns the current ADX; 0 until Ready.
func (a *ADX) Value() float64 { return a.current }

// Ready reports whether the first ADX value has been produced.
func (a *ADX) Ready() bool { return a.dxCount >= a.period }
