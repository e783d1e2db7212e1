package signal

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone lookup without system tzdata
)

// TradingWindow is a daily session, Monday to Friday, in a fixed zone.
type TradingWindow struct {
	Location *time.Location
	Open     time.Duration // offset from local midnight
	Close    time.Duration
}

// NewTradingWindow parses "HH:MM" bounds in the named IANA zone.
func NewTradingWindow(zone, open, close string) (*TradingWindow, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("trading window: %w", err)
	}
	o, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("trading window open: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("trading window close: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("trading window: close %s is not after open %s", close, open)
	}
	return &TradingWindow{Location: loc, Open: o, Close: c}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether t falls inside the session: open inclusive,
// close exclusive, weekends excluded.
func (w *TradingWindow) Contains(t time.Time) bool {
	local := t.In(w.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	since := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return since >= w.Open && since < w.Close
}
