// Package manifest implements the manifest codec: the small, diff-friendly
// JSON document that records a checkpoint's tensor structure. Grounded on
// original_source/vekt_core/src/storage.rs's VektManifest/ManifestTensor,
// translated from serde's BTreeMap (automatically key-sorted) to an
// explicit key-sort in MarshalJSON, since Go's map iteration order is not
// part of the language's guarantees the way BTreeMap's is in Rust.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tgit-dev/tgit/internal/tensorheader"
	"github.com/tgit-dev/tgit/internal/tgiterr"
)

// CurrentVersion is the only manifest version this build accepts.
const CurrentVersion = "1.0"

// Tensor is a single tensor's entry in a manifest.
type Tensor struct {
	Shape []int64                                  `json:"shape"`
	Dtype string                                    `json:"dtype"`
	Hash  string                                    `json:"hash"`
	Index int                                       `json:"index"`
	Extra *tensorheader.OrderedMap[json.RawMessage] `json:"extra,omitempty"`
}

// Manifest records a checkpoint's tensor structure: version, informational
// total size, and the tensor-name -> Tensor mapping, key-sorted on
// serialization for deterministic, diff-friendly text.
type Manifest struct {
	Version   string
	TotalSize int64
	Tensors   map[string]Tensor
}

type manifestWire struct {
	Version   string          `json:"version"`
	TotalSize int64           `json:"total_size"`
	Tensors   json.RawMessage `json:"tensors"`
}

// MarshalJSON sorts tensor keys explicitly. Relying on encoding/json's
// already-sorted map[string]V encoding would tie a testable property
// (byte-identical output across platforms) to an implementation detail
// of the standard library rather than to a guarantee this package makes
// itself.
func (m Manifest) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(m.Tensors))
	for name := range m.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	var tensorsBuf bytes.Buffer
	tensorsBuf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			tensorsBuf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		valBytes, err := json.Marshal(m.Tensors[name])
		if err != nil {
			return nil, err
		}
		tensorsBuf.Write(keyBytes)
		tensorsBuf.WriteByte(':')
		tensorsBuf.Write(valBytes)
	}
	tensorsBuf.WriteByte('}')

	return json.Marshal(manifestWire{
		Version:   m.Version,
		TotalSize: m.TotalSize,
		Tensors:   tensorsBuf.Bytes(),
	})
}

// UnmarshalJSON decodes a manifest. Tensor map order on the wire is not
// meaningful (physical order is recovered via each Tensor's Index field);
// plain map decoding is sufficient here.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var wire manifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("manifest: decoding: %w: %v", tgiterr.ErrInvalidManifest, err)
	}
	var tensors map[string]Tensor
	if err := json.Unmarshal(wire.Tensors, &tensors); err != nil {
		return fmt.Errorf("manifest: decoding tensors: %w: %v", tgiterr.ErrInvalidManifest, err)
	}
	m.Version = wire.Version
	m.TotalSize = wire.TotalSize
	m.Tensors = tensors
	return nil
}

// ValidateAndMigrate checks the manifest's version. "1.0" passes through
// unchanged; anything else fails. There is, as yet, nothing to migrate
// from — this is the hook a future version bump would extend.
func (m Manifest) ValidateAndMigrate() (Manifest, error) {
	switch m.Version {
	case CurrentVersion:
		return m, nil
	default:
		return Manifest{}, fmt.Errorf("manifest: unsupported version %q (current is %q): %w", m.Version, CurrentVersion, tgiterr.ErrUnsupportedVersion)
	}
}

// Encode serializes a manifest to its canonical on-disk bytes.
func Encode(m Manifest) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses manifest bytes and validates the version.
func Decode(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		if errors.Is(err, tgiterr.ErrInvalidManifest) {
			return Manifest{}, err
		}
		return Manifest{}, fmt.Errorf("manifest: decoding: %w: %v", tgiterr.ErrInvalidManifest, err)
	}
	return m.ValidateAndMigrate()
}
