// Package runlock serializes live cycles so that at most one is in flight.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLocked is returned when another cycle holds the lock.
var ErrLocked = errors.New("runlock: another cycle is in flight")

// Release gives the lock back.
type Release func() error

// Locker acquires a run lock without waiting.
type Locker interface {
	TryLock(ctx context.Context) (Release, error)
}

// FileLocker combines an in-process mutex with an exclusive lock file, so
// overlapping triggers in one process and across processes both see
// ErrLocked.
type FileLocker struct {
	Path string
	// StaleAfter, when positive, lets a lock file not touched for this long
	// be taken over. The holder refreshes the file's mtime every third of
	// StaleAfter, so only a dead holder goes stale.
	StaleAfter time.Duration

	mu sync.Mutex
}

// NewFileLocker creates a FileLocker for path.
func NewFileLocker(path string, staleAfter time.Duration) *FileLocker {
	return &FileLocker{Path: path, StaleAfter: staleAfter}
}

// TryLock implements Locker.
func (l *FileLocker) TryLock(ctx context.Context) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	f, err := l.create()
	if errors.Is(err, fs.ErrExist) && l.stale() {
		if rmErr := os.Remove(l.Path); rmErr == nil || errors.Is(rmErr, fs.ErrNotExist) {
			f, err = l.create()
		}
	}
	if err != nil {
		l.mu.Unlock()
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("runlock: create %s: %w", l.Path, err)
	}
	fmt.Fprintf(f, "pid=%d acquired=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	f.Close()
	stop := l.heartbeat()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			stop()
			defer l.mu.Unlock()
			if rmErr := os.Remove(l.Path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = fmt.Errorf("runlock: remove %s: %w", l.Path, rmErr)
			}
		})
		return err
	}, nil
}

func (l *FileLocker) create() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// heartbeat touches the lock file until stop is called. stop returns once
// the last touch is done.
func (l *FileLocker) heartbeat() (stop func()) {
	if l.StaleAfter <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(l.StaleAfter / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				_ = os.Chtimes(l.Path, now, now)
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func (l *FileLocker) stale() bool {
	if l.StaleAfter <= 0 {
		return false
	}
	info, err := os.Stat(l.Path)
	return err == nil && time.Since(info.ModTime()) > l.StaleAfter
}

// Chain acquires every locker in order and releases them in reverse. If
// one fails, those already held are released.
type Chain []Locker

// TryLock implements Locker.
func (c Chain) TryLock(ctx context.Context) (Release, error) {
	held := make([]Release, 0, len(c))
	releaseAll := func() error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	for _, l := range c {
		rel, err := l.TryLock(ctx)
		if err != nil {
			if relErr := releaseAll(); relErr != nil {
				return nil, errors.Join(err, relErr)
			}
			return nil, err
		}
		held = append(held, rel)
	}
	return releaseAll, nil
}
