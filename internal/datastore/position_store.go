package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/state"
)

// PositionStore keeps the live position in the position_state table under
// one key, using the same checksummed envelope as the file store. The
// envelope is stored as text so the checksummed bytes survive.
type PositionStore struct {
	db  DB
	key string
	now func() time.Time
}

// NewPositionStore creates a state.Store backed by db.
func NewPositionStore(db DB, key string) *PositionStore {
	return &PositionStore{db: db, key: key, now: time.Now}
}

var _ state.Store = (*PositionStore)(nil)

// Load implements state.Store.
func (s *PositionStore) Load(ctx context.Context) (model.PositionState, error) {
	var envelope string
	err := s.db.QueryRow(ctx, `SELECT envelope FROM position_state WHERE key = $1`, s.key).Scan(&envelope)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PositionState{}, state.ErrNoState
	}
	if err != nil {
		return model.PositionState{}, fmt.Errorf("datastore: load position %q: %w", s.key, err)
	}
	return state.Decode([]byte(envelope), "position_state/"+s.key)
}

// Save implements state.Store.
func (s *PositionStore) Save(ctx context.Context, st model.PositionState) error {
	envelope, err := state.Encode(st, s.now())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO position_state (key, envelope, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET envelope = EXCLUDED.envelope, updated_at = now()`,
		s.key, string(envelope),
	)
	if err != nil {
		return fmt.Errorf("datastore: save position %q: %w", s.key, err)
	}
	return nil
}
