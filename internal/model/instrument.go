// Package model holds the domain types shared by the decision engine,
// the position state machine, the backtest driver and the live cycle.
package model

import (
	"fmt"
	"strings"
)

// Instrument identifies which role of the universe is currently held.
// The zero value is Unknown and never valid in a position.
type Instrument int

const (
	// Unknown is the zero value.
	Unknown Instrument = iota
	// Safe is the benchmark itself, the instrument retreated to between bets.
	Safe
	// LongLeveraged amplifies the benchmark's daily return upwards.
	LongLeveraged
	// ShortLeveraged amplifies the inverse of the benchmark's daily return.
	ShortLeveraged
)

// String returns the wire name of the instrument.
func (i Instrument) String() string {
	switch i {
	case Safe:
		return "SAFE"
	case LongLeveraged:
		return "LONG_LEVERAGED"
	case ShortLeveraged:
		return "SHORT_LEVERAGED"
	default:
		return "UNKNOWN"
	}
}

// IsLeveraged reports whether holding i is a leveraged bet.
func (i Instrument) IsLeveraged() bool {
	return i == LongLeveraged || i == ShortLeveraged
}

// Valid reports whether i is one of the holdable instruments.
func (i Instrument) Valid() bool {
	return i == Safe || i == LongLeveraged || i == ShortLeveraged
}

// ParseInstrument parses the wire name produced by String.
func ParseInstrument(s string) (Instrument, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SAFE":
		return Safe, nil
	case "LONG_LEVERAGED":
		return LongLeveraged, nil
	case "SHORT_LEVERAGED":
		return ShortLeveraged, nil
	default:
		return Unknown, fmt.Errorf("unknown instrument %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler. Unknown is written as
// "UNKNOWN" so that error holds issued before a state was loaded can still
// be encoded.
func (i Instrument) MarshalText() ([]byte, error) {
	if !i.Valid() && i != Unknown {
		return nil, fmt.Errorf("cannot marshal instrument %d", int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Instrument) UnmarshalText(text []byte) error {
	if string(text) == "UNKNOWN" {
		*i = Unknown
		return nil
	}
	parsed, err := ParseInstrument(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Role identifies one of the series that feed the aligner.
type Role int

const (
	// Benchmark is the underlying index tracker; it is also the safe instrument.
	Benchmark Role = iota
	// LongProxy is the leveraged long instrument.
	LongProxy
	// ShortProxy is the leveraged short instrument.
	ShortProxy
	// VolatilityIndex is the volatility gauge used as a confirmation.
	VolatilityIndex
)

// Roles lists every role in a fixed order.
var Roles = []Role{Benchmark, LongProxy, ShortProxy, VolatilityIndex}

// String returns a lower-case role name.
func (r Role) String() string {
	switch r {
	case Benchmark:
		return "benchmark"
	case LongProxy:
		return "long_proxy"
	case ShortProxy:
		return "short_proxy"
	case VolatilityIndex:
		return "volatility_index"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// RoleOf maps a held instrument to the series whose price marks it.
func RoleOf(i Instrument) Role {
	switch i {
	case LongLeveraged:
		return LongProxy
	case ShortLeveraged:
		return ShortProxy
	default:
		return Benchmark
	}
}

// Universe maps every role to its configured ticker.
type Universe map[Role]string

// Ticker returns the ticker configured for the instrument.
func (u Universe) Ticker(i Instrument) string {
	return u[RoleOf(i)]
}

// Validate checks that every role has a distinct, non-empty ticker.
func (u Universe) Validate() error {
	seen := make(map[string]Role, len(Roles))
	for _, r := range Roles {
		t := u[r]
		if t == "" {
			return fmt.Errorf("universe: no ticker configured for %s", r)
		}
		if prev, dup := seen[t]; dup {
			return fmt.Errorf("universe: ticker %q used for both %s and %s", t, prev, r)
		}
		seen[t] = r
	}
	return nil
}
