// Package remote implements remote sync: push/pull of manifests and
// blobs over an abstract blob transport, plus a concrete S3-backed
// transport. Grounded line-for-line on
// original_source/vekt_core/src/remote.rs's RemoteClient (push/pull
// bodies, bounded fan-out, manifest-last push ordering, manifest-first
// pull with atomic per-blob placement), generalized from a single
// hard-coded S3 bucket client to an abstract Transport interface so
// Push/Pull themselves depend on nothing cloud-specific.
package remote

import (
	"context"
	"io"
)

// Transport is the abstract blob transport spec.md §4.G specifies: a
// flat key namespace supporting existence check, buffered and streaming
// get, put, and prefix listing.
type Transport interface {
	// Head reports whether key exists on the remote.
	Head(ctx context.Context, key string) (bool, error)
	// Get returns the full contents of key.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetStream returns a streaming reader for key's contents. Callers
	// must Close it.
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)
	// Put uploads data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// PutStream uploads body under key without requiring the caller to
	// buffer the whole object in memory first. Used for blob uploads;
	// Put remains for small objects like manifests.
	PutStream(ctx context.Context, key string, body io.Reader) error
	// List returns every key with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Key layout on the remote (spec.md §4.G).
const (
	manifestsPrefix = "manifests/"
	blobsPrefix     = "blobs/"
)

func manifestKey(name string) string {
	return manifestsPrefix + name
}

func blobKey(hash string) string {
	return blobsPrefix + hash
}
