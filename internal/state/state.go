// Package state persists the live PositionState between cycles.
package state

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// Version of the envelope format.
const Version = 1

var (
	// ErrNoState means nothing has been persisted yet.
	ErrNoState = errors.New("state: no persisted position")
	// ErrStateCorruption means a persisted position failed validation.
	ErrStateCorruption = errors.New("state: persisted position is corrupted")
)

// CorruptionError describes why a persisted state was rejected.
type CorruptionError struct {
	Source string
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("state: %s is corrupted: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Is matches ErrStateCorruption.
func (e *CorruptionError) Is(target error) bool { return target == ErrStateCorruption }

// Store loads and saves the single live position.
type Store interface {
	Load(ctx context.Context) (model.PositionState, error)
	Save(ctx context.Context, st model.PositionState) error
}

type envelope struct {
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"saved_at"`
	Checksum string          `json:"checksum"`
	State    json.RawMessage `json:"state"`
}

// Encode validates st and wraps it in a checksummed envelope.
func Encode(st model.PositionState, savedAt time.Time) ([]byte, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("state: refusing to save invalid position: %w", err)
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("state: encode position: %w", err)
	}
	env := envelope{Version: Version, SavedAt: savedAt.UTC(), Checksum: checksum(raw), State: raw}
	return json.MarshalIndent(env, "", "  ")
}

// Decode verifies the envelope written by Encode. source names the origin
// in errors. Every failure is a *CorruptionError.
func Decode(data []byte, source string) (model.PositionState, error) {
	corrupt := func(reason string, err error) (model.PositionState, error) {
		return model.PositionState{}, &CorruptionError{Source: source, Reason: reason, Err: err}
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return corrupt("unreadable envelope", err)
	}
	if env.Version != Version {
		return corrupt(fmt.Sprintf("unsupported version %d", env.Version), nil)
	}
	if len(env.State) == 0 {
		return corrupt("missing state", nil)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, env.State); err != nil {
		return corrupt("malformed state", err)
	}
	if got := checksum(compact.Bytes()); got != env.Checksum {
		return corrupt(fmt.Sprintf("checksum mismatch (stored %s, computed %s)", env.Checksum, got), nil)
	}

	var st model.PositionState
	sdec := json.NewDecoder(bytes.NewReader(compact.Bytes()))
	sdec.DisallowUnknownFields()
	if err := sdec.Decode(&st); err != nil {
		return corrupt("undecodable position", err)
	}
	if err := st.Validate(); err != nil {
		return corrupt("invalid position", err)
	}
	return st, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
