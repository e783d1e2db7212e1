// Package marketdata loads daily bar series and aligns them into
// date-indexed rows shared by every tracked instrument.
package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// ErrInsufficientData is returned when the aligned table is empty or too
// short to run on. It aborts the run.
var ErrInsufficientData = errors.New("insufficient data")

// Normalize sorts bars ascending by calendar day and drops duplicate days,
// keeping the last bar seen for a day. The input slice is not modified.
func Normalize(s model.Series) model.Series {
	byDay := make(map[time.Time]model.Bar, len(s.Bars))
	for _, b := range s.Bars {
		b.Date = model.Day(b.Date)
		byDay[b.Date] = b
	}
	out := make([]model.Bar, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return model.Series{Ticker: s.Ticker, Bars: out}
}

// Align inner-joins the series on calendar date. A row is emitted only
// for days on which every role has a bar; nothing is forward-filled.
func Align(series map[model.Role]model.Series) ([]model.AlignedRow, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("align: no series given: %w", ErrInsufficientData)
	}
	for _, r := range model.Roles {
		if _, ok := series[r]; !ok {
			return nil, fmt.Errorf("align: missing series for %s: %w", r, ErrInsufficientData)
		}
	}

	index := make(map[model.Role]map[time.Time]model.Bar, len(series))
	dates := make(map[time.Time]struct{})
	for role, s := range series {
		bars := make(map[time.Time]model.Bar, len(s.Bars))
		for _, b := range s.Bars {
			d := model.Day(b.Date)
			b.Date = d
			bars[d] = b
			dates[d] = struct{}{}
		}
		index[role] = bars
	}

	ordered := make([]time.Time, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	rows := make([]model.AlignedRow, 0, len(ordered))
	for _, d := range ordered {
		row := model.AlignedRow{Date: d, Bars: make(map[model.Role]model.Bar, len(index))}
		complete := true
		for role, bars := range index {
			b, ok := bars[d]
			if !ok {
				complete = false
				break
			}
			row.Bars[role] = b
		}
		if complete {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("align: no date common to all %d series: %w", len(series), ErrInsufficientData)
	}
	return rows, nil
}
