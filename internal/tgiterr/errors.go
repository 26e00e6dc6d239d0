// Package tgiterr defines the sentinel error kinds shared across tgit's
// components. Callers should compare with errors.Is; the concrete
// messages attached via fmt.Errorf's %w are for humans, not control flow.
package tgiterr

import "errors"

var (
	// ErrIo signals a filesystem failure unrelated to tgit's own invariants.
	ErrIo = errors.New("io error")

	// ErrCorruptHeader signals a container header that is missing, not
	// valid UTF-8, or not valid JSON.
	ErrCorruptHeader = errors.New("corrupt container header")

	// ErrCorruptTensor signals a single tensor whose offsets exceed the
	// container (recovered locally during ingest: skip, warn, continue),
	// or, during restore, a tensor whose dtype is unknown (fatal there).
	ErrCorruptTensor = errors.New("corrupt tensor")

	// ErrInvalidName signals a tensor name that fails the path-safety
	// checks in tensorheader.ValidateName.
	ErrInvalidName = errors.New("invalid tensor name")

	// ErrBlobNotFound signals a referenced hash missing from the local
	// store (restore) or missing locally for upload (push).
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBlobCorrupt signals a blob whose bytes do not hash to its
	// filename.
	ErrBlobCorrupt = errors.New("blob corrupt")

	// ErrInvalidManifest signals manifest JSON that is malformed or
	// fails schema checks.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrUnsupportedVersion signals a manifest whose version field is not
	// recognized by this build.
	ErrUnsupportedVersion = errors.New("unsupported manifest version")

	// ErrLockHeld signals that another mutator holds the repository lock.
	ErrLockHeld = errors.New("repository lock held")

	// ErrRemoteError signals a transport failure or non-success response.
	ErrRemoteError = errors.New("remote error")

	// ErrCredential signals a transport authentication misconfiguration.
	ErrCredential = errors.New("credential error")

	// ErrRepoNotFound signals that no ancestor directory contains a .tgit
	// store and no environment override was supplied.
	ErrRepoNotFound = errors.New("repository not found")
)
