package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// FileStore keeps the envelope in a single JSON file. Writes go to a
// temporary file in the same directory and are renamed into place.
type FileStore struct {
	Path string
	Now  func() time.Time
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, Now: time.Now}
}

// Load reads the position. A missing file is ErrNoState.
func (s *FileStore) Load(ctx context.Context) (model.PositionState, error) {
	if err := ctx.Err(); err != nil {
		return model.PositionState{}, err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.PositionState{}, ErrNoState
	}
	if err != nil {
		return model.PositionState{}, fmt.Errorf("state: read %s: %w", s.Path, err)
	}
	return Decode(data, s.Path)
}

// Save atomically replaces the file with st.
func (s *FileStore) Save(ctx context.Context, st model.PositionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	data, err := Encode(st, now())
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("state: replace %s: %w", s.Path, err)
	}
	return nil
}

// Quarantine moves a rejected state file aside so a fresh position can be
// started without destroying the evidence. It returns the new path.
func (s *FileStore) Quarantine() (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	dst := fmt.Sprintf("%s.corrupt-%s", s.Path, now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.Path, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("state: quarantine %s: %w", s.Path, err)
	}
	return dst, nil
}
