package marketdata

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lev-meanrev-bot/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesOn(ticker string, days ...int) model.Series {
	s := model.Series{Ticker: ticker}
	for _, d := range days {
		s.Bars = append(s.Bars, model.Bar{
			Date:  day0.AddDate(0, 0, d),
			Open:  100 + float64(d),
			High:  101 + float64(d),
			Low:   99 + float64(d),
			Close: 100 + float64(d),
		})
	}
	return s
}

func TestAlign_InnerJoin(t *testing.T) {
	in := map[model.Role]model.Series{
		model.Benchmark:       seriesOn("QQQ", 0, 1, 2, 3, 4),
		model.LongProxy:       seriesOn("TQQQ", 1, 2, 3, 4),
		model.ShortProxy:      seriesOn("SQQQ", 0, 1, 2, 4),
		model.VolatilityIndex: seriesOn("^VIX", 0, 1, 2, 3, 4, 5),
	}

	rows, err := Align(in)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, day0.AddDate(0, 0, 1), rows[0].Date)
	assert.Equal(t, day0.AddDate(0, 0, 2), rows[1].Date)
	assert.Equal(t, day0.AddDate(0, 0, 4), rows[2].Date)
	for _, r := range rows {
		assert.Len(t, r.Bars, len(model.Roles))
	}
}

func TestAlign_EmptyIntersection(t *testing.T) {
	in := map[model.Role]model.Series{
		model.Benchmark:       seriesOn("QQQ", 0, 1),
		model.LongProxy:       seriesOn("TQQQ", 2, 3),
		model.ShortProxy:      seriesOn("SQQQ", 0, 1),
		model.VolatilityIndex: seriesOn("^VIX", 0, 1),
	}
	_, err := Align(in)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAlign_MissingRole(t *testing.T) {
	in := map[model.Role]model.Series{
		model.Benchmark: seriesOn("QQQ", 0, 1),
	}
	_, err := Align(in)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Align(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// A date is in the output iff every input series has it.
func TestAlign_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		in := make(map[model.Role]model.Series, len(model.Roles))
		membership := make(map[model.Role]map[int]bool)
		for _, role := range model.Roles {
			var days []int
			membership[role] = map[int]bool{}
			for d := 0; d < 40; d++ {
				if rng.Float64() < 0.8 {
					days = append(days, d)
					membership[role][d] = true
				}
			}
			in[role] = seriesOn(role.String(), days...)
		}

		var want []time.Time
		for d := 0; d < 40; d++ {
			all := true
			for _, role := range model.Roles {
				all = all && membership[role][d]
			}
			if all {
				want = append(want, day0.AddDate(0, 0, d))
			}
		}

		rows, err := Align(in)
		if len(want) == 0 {
			require.ErrorIs(t, err, ErrInsufficientData)
			continue
		}
		require.NoError(t, err)
		got := make([]time.Time, len(rows))
		for i, r := range rows {
			got[i] = r.Date
			for _, role := range model.Roles {
				b, ok := r.Bars[role]
				require.True(t, ok, "row %s missing %s", r.Date, role)
				require.Equal(t, r.Date, b.Date)
				require.Positive(t, b.Close)
			}
		}
		require.Equal(t, want, got, "iteration %d", iter)
	}
}

func TestNormalize_SortsAndDedupes(t *testing.T) {
	s := model.Series{Ticker: "QQQ", Bars: []model.Bar{
		{Date: day0.AddDate(0, 0, 2), Close: 3},
		{Date: day0.Add(15 * time.Hour), Close: 1},
		{Date: day0.AddDate(0, 0, 1), Close: 2},
		{Date: day0, Close: 1.5},
	}}
	got := Normalize(s)
	require.Len(t, got.Bars, 3)
	assert.Equal(t, day0, got.Bars[0].Date)
	assert.Equal(t, 1.5, got.Bars[0].Close)
	assert.Equal(t, 2.0, got.Bars[1].Close)
	assert.Equal(t, 3.0, got.Bars[2].Close)
	assert.Len(t, s.Bars, 4, "input must not be modified")
}
