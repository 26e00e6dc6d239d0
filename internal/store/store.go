// Package store implements the local content-addressed object store: one
// regular file per blob, named by its lower-case hex BLAKE3 digest,
// written via a sibling temp file plus fsync and atomic rename so
// readers never observe a partial blob under its final name.
//
// Shape and guarantees are grounded on the corpus's own content-addressed
// blob store (bazel-contrib-rules_img's pull_tool/pkg/blobstore), adapted
// from sha256-prefixed OCI digests to tgit's bare-hex BLAKE3 digests and
// from a flat directory-per-shard layout to a single flat directory, per
// spec.md's object-store data model ("one regular file per blob, file
// name = hex digest").
package store

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/tgit-dev/tgit/internal/tgiterr"
)

const hashHexLen = 64 // BLAKE3-256 digest, lower-case hex

// Store is a content-addressed directory of blobs.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. Init must be called before use on a
// fresh directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Init creates the store directory and its .gitignore if they do not
// already exist.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", s.dir, tgiterr.ErrIo)
	}
	gitignore := filepath.Join(s.dir, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte("*\n"), 0o644); err != nil {
			return fmt.Errorf("store: writing %s: %w", gitignore, tgiterr.ErrIo)
		}
	}
	return nil
}

// Path returns the filesystem path a blob with the given hash would live
// at. Pure; does not touch the filesystem.
func (s *Store) Path(hash string) string {
	return filepath.Join(s.dir, hash)
}

// Has reports whether a blob with the given hash is present.
func (s *Store) Has(hash string) bool {
	_, err := os.Stat(s.Path(hash))
	return err == nil
}

// Insert writes data under its BLAKE3 hex digest and returns the digest.
// A no-op if the blob already exists; concurrent inserts of the same
// hash are safe because content is fixed by the hash and the final
// rename is atomic.
func (s *Store) Insert(data []byte) (string, error) {
	sum := blake3.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if s.Has(hash) {
		return hash, nil
	}
	if err := s.writeAtomic(hash, data); err != nil {
		return "", err
	}
	return hash, nil
}

// InsertWithHash writes data under an already-known hash, verifying it
// first. Remote pull does not use it; it places blobs with InsertStream.
func (s *Store) InsertWithHash(hash string, data []byte) error {
	sum := blake3.Sum256(data)
	if hex.EncodeToString(sum[:]) != hash {
		return fmt.Errorf("store: data does not hash to %s: %w", hash, tgiterr.ErrBlobCorrupt)
	}
	if s.Has(hash) {
		return nil
	}
	return s.writeAtomic(hash, data)
}

// InsertStream writes r's contents under hash, verifying the digest as
// bytes are streamed through rather than buffering the whole blob in
// memory first. Used by remote pull. A no-op (draining r) if the blob
// already exists.
func (s *Store) InsertStream(hash string, r io.Reader) error {
	if s.Has(hash) {
		_, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("store: draining already-present blob %s: %w", hash, tgiterr.ErrIo)
		}
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", s.dir, tgiterr.ErrIo)
	}
	tmpPath := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("store: creating temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	defer os.Remove(tmpPath)

	hasher := blake3.New(32, nil)
	if _, err := io.Copy(io.MultiWriter(f, hasher), r); err != nil {
		f.Close()
		return fmt.Errorf("store: writing temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	if sum := hex.EncodeToString(hasher.Sum(nil)); sum != hash {
		f.Close()
		return fmt.Errorf("store: data does not hash to %s: %w", hash, tgiterr.ErrBlobCorrupt)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store: fsyncing temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: closing temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	if err := os.Rename(tmpPath, s.Path(hash)); err != nil {
		return fmt.Errorf("store: renaming into place for %s: %w", hash, tgiterr.ErrIo)
	}
	return nil
}

func (s *Store) writeAtomic(hash string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", s.dir, tgiterr.ErrIo)
	}
	tmpPath := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("store: creating temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("store: writing temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store: fsyncing temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: closing temp file for %s: %w", hash, tgiterr.ErrIo)
	}
	if err := os.Rename(tmpPath, s.Path(hash)); err != nil {
		return fmt.Errorf("store: renaming into place for %s: %w", hash, tgiterr.ErrIo)
	}
	return nil
}

// Read returns a blob's bytes, verifying it still hashes to its
// filename. A blob found corrupt is removed from the store before the
// error is returned, so a later re-pull or re-ingest can replace it.
func (s *Store) Read(hash string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: %s: %w", hash, tgiterr.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("store: reading %s: %w", hash, tgiterr.ErrIo)
	}
	sum := blake3.Sum256(data)
	if hex.EncodeToString(sum[:]) != hash {
		os.Remove(s.Path(hash))
		return nil, fmt.Errorf("store: %s does not hash to its filename: %w", hash, tgiterr.ErrBlobCorrupt)
	}
	return data, nil
}

// Open returns a streaming reader for a blob without loading it fully
// into memory or re-verifying its digest; callers that need verified
// reads should prefer Read or verify with a hashing reader themselves.
func (s *Store) Open(hash string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: %s: %w", hash, tgiterr.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("store: opening %s: %w", hash, tgiterr.ErrIo)
	}
	return f, nil
}

// isHexDigest reports whether name looks like a well-formed lower-case
// hex BLAKE3 digest, i.e. a plausible blob filename.
func isHexDigest(name string) bool {
	if len(name) != hashHexLen {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

// Enumerate lists every well-formed hash currently in the store.
// Non-hex entries (the .gitignore, temp files, the lock file) are
// ignored.
func (s *Store) Enumerate() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: reading %s: %w", s.dir, tgiterr.ErrIo)
	}
	hashes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isHexDigest(entry.Name()) {
			hashes = append(hashes, entry.Name())
		}
	}
	return hashes, nil
}

// Remove deletes a blob by hash. Used by the garbage collector.
func (s *Store) Remove(hash string) error {
	if err := os.Remove(s.Path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: removing %s: %w", hash, tgiterr.ErrIo)
	}
	return nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}
