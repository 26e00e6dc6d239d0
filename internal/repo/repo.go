// Package repo locates a tgit repository root and manages its on-disk
// layout (the .tgit directory: blobs/, lock, config.json, .gitignore).
// Grounded on original_source/vekt_core/src/utils.rs's find_vekt_root,
// ensure_vekt_dir, and write_file_atomic, with VEKT_ROOT renamed to
// TGIT_ROOT and .vekt renamed to .tgit per this module's naming.
package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tgit-dev/tgit/internal/tgiterr"
)

// RootEnvVar overrides root discovery, taking precedence over the
// upward directory walk.
const RootEnvVar = "TGIT_ROOT"

// DirName is the repository metadata directory name.
const DirName = ".tgit"

// FindRoot returns the repository root: the TGIT_ROOT environment
// variable if set, otherwise the nearest ancestor directory (starting
// from the current working directory) containing a .tgit directory.
// Returns ErrRepoNotFound if neither applies.
func FindRoot() (string, error) {
	if root := os.Getenv(RootEnvVar); root != "" {
		return root, nil
	}

	current, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("repo: getting working directory: %w", tgiterr.ErrIo)
	}
	for {
		candidate := filepath.Join(current, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", fmt.Errorf("repo: no %s directory found in any ancestor: %w", DirName, tgiterr.ErrRepoNotFound)
}

// Dir returns the .tgit directory path under root.
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

// StorePath returns the blob store directory path under root.
func StorePath(root string) string {
	return filepath.Join(Dir(root), "blobs")
}

// LockPath returns the repository lock file path under root.
func LockPath(root string) string {
	return filepath.Join(Dir(root), "lock")
}

// ConfigPath returns the config file path under root.
func ConfigPath(root string) string {
	return filepath.Join(Dir(root), "config.json")
}

// EnsureDir creates the .tgit directory (and a .gitignore inside it, if
// absent) under root.
func EnsureDir(root string) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("repo: creating %s: %w", dir, tgiterr.ErrIo)
	}
	gitignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte("*\n"), 0o644); err != nil {
			return fmt.Errorf("repo: writing %s: %w", gitignore, tgiterr.ErrIo)
		}
	}
	return nil
}

// WriteFileAtomic writes data to path via a sibling temp file, fsync,
// and rename, the same pattern the object store uses for blobs. A
// uuid-suffixed temp name (rather than a fixed ".tmp" suffix)
// lets concurrent writers targeting different final paths never collide.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("repo: creating %s: %w", dir, tgiterr.ErrIo)
	}
	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("repo: creating temp file for %s: %w", path, tgiterr.ErrIo)
	}
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("repo: writing temp file for %s: %w", path, tgiterr.ErrIo)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("repo: fsyncing temp file for %s: %w", path, tgiterr.ErrIo)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("repo: closing temp file for %s: %w", path, tgiterr.ErrIo)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("repo: renaming into place for %s: %w", path, tgiterr.ErrIo)
	}
	return nil
}
