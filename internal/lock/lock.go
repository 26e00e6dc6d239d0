// Package lock implements the repository lock: a single-writer exclusion
// file with stale-lock recovery. Ported directly from
// original_source/vekt_core/src/utils.rs's LockFile, translating Rust's
// Drop-based scoped release into Go's Close().
package lock

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tgit-dev/tgit/internal/repo"
	"github.com/tgit-dev/tgit/internal/tgiterr"
)

// StaleThreshold is the maximum age of a lock file before it is
// considered abandoned by a crashed process.
const StaleThreshold = 300 * time.Second

// Lock represents a held repository lock. Release it with Close.
type Lock struct {
	path string
}

// Acquire takes the repository lock at <root>/.tgit/lock. If the lock
// file exists and is younger than StaleThreshold, it fails with
// ErrLockHeld. If older, it is removed (with a warning written to
// stderr) and acquisition proceeds.
func Acquire(root string) (*Lock, error) {
	if err := repo.EnsureDir(root); err != nil {
		return nil, err
	}
	path := repo.LockPath(root)

	if info, err := os.Stat(path); err == nil {
		age := time.Since(info.ModTime())
		if age > StaleThreshold {
			fmt.Fprintf(os.Stderr, "warning: removing stale lock file (age %s), previous process may have crashed\n", age.Round(time.Second))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("lock: removing stale lock: %w", tgiterr.ErrIo)
			}
		} else {
			return nil, fmt.Errorf("lock: %s is held (age %s): %w", path, age.Round(time.Second), tgiterr.ErrLockHeld)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("lock: statting %s: %w", path, tgiterr.ErrIo)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("lock: %s: %w", path, tgiterr.ErrLockHeld)
		}
		return nil, fmt.Errorf("lock: creating %s: %w", path, tgiterr.ErrIo)
	}
	defer f.Close()

	content := strconv.Itoa(os.Getpid()) + "\n" + strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := f.WriteString(content); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("lock: writing %s: %w", path, tgiterr.ErrIo)
	}

	return &Lock{path: path}, nil
}

// Close releases the lock, removing the lock file. Safe to call on every
// exit path, including after a later failure — a missing lock file is
// not an error.
func (l *Lock) Close() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: removing %s: %w", l.path, tgiterr.ErrIo)
	}
	return nil
}
