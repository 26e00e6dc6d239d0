// Package tensorheader models the raw tensor-container header format: an
// order-preserving mapping from tensor name to shape/dtype/offsets/extra,
// plus the dtype size table and tensor-name safety checks shared by the
// container reader and the archive engine.
package tensorheader

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawTensorMetaData is a single tensor's entry in the container's raw
// header, exactly as it appears inside the opaque container (spec.md §3).
type RawTensorMetaData struct {
	Shape       []int64
	Dtype       string
	DataOffsets [2]int64
	// Extra carries any fields beyond shape/dtype/data_offsets, in the
	// order they were encountered on the wire, so they round-trip
	// untouched (spec.md §3, §9).
	Extra *OrderedMap[json.RawMessage]
}

const (
	keyShape       = "shape"
	keyDtype       = "dtype"
	keyDataOffsets = "data_offsets"
)

// MarshalJSON emits the known fields first, followed by extra fields in
// their original relative order. Intra-entry field order is not part of
// the byte-identity invariant (spec.md §4.C), so this fixed placement of
// the known fields is not a semantic deviation.
func (t RawTensorMetaData) MarshalJSON() ([]byte, error) {
	raw := NewOrderedMap[json.RawMessage]()

	shapeJSON, err := json.Marshal(t.Shape)
	if err != nil {
		return nil, fmt.Errorf("tensorheader: marshaling shape: %w", err)
	}
	raw.Set(keyShape, shapeJSON)

	dtypeJSON, err := json.Marshal(t.Dtype)
	if err != nil {
		return nil, fmt.Errorf("tensorheader: marshaling dtype: %w", err)
	}
	raw.Set(keyDtype, dtypeJSON)

	offsetsJSON, err := json.Marshal(t.DataOffsets)
	if err != nil {
		return nil, fmt.Errorf("tensorheader: marshaling data_offsets: %w", err)
	}
	raw.Set(keyDataOffsets, offsetsJSON)

	if t.Extra != nil {
		t.Extra.Range(func(key string, value json.RawMessage) bool {
			raw.Set(key, value)
			return true
		})
	}
	return raw.MarshalJSON()
}

// UnmarshalJSON decodes the known fields and collects everything else
// into Extra, preserving the order extra keys appeared in.
func (t *RawTensorMetaData) UnmarshalJSON(data []byte) error {
	raw := NewOrderedMap[json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}

	shapeRaw, ok := raw.Get(keyShape)
	if !ok {
		return fmt.Errorf("tensorheader: tensor entry missing %q", keyShape)
	}
	if err := json.Unmarshal(shapeRaw, &t.Shape); err != nil {
		return fmt.Errorf("tensorheader: decoding shape: %w", err)
	}

	dtypeRaw, ok := raw.Get(keyDtype)
	if !ok {
		return fmt.Errorf("tensorheader: tensor entry missing %q", keyDtype)
	}
	if err := json.Unmarshal(dtypeRaw, &t.Dtype); err != nil {
		return fmt.Errorf("tensorheader: decoding dtype: %w", err)
	}

	offsetsRaw, ok := raw.Get(keyDataOffsets)
	if !ok {
		return fmt.Errorf("tensorheader: tensor entry missing %q", keyDataOffsets)
	}
	if err := json.Unmarshal(offsetsRaw, &t.DataOffsets); err != nil {
		return fmt.Errorf("tensorheader: decoding data_offsets: %w", err)
	}

	extra := NewOrderedMap[json.RawMessage]()
	raw.Range(func(key string, value json.RawMessage) bool {
		switch key {
		case keyShape, keyDtype, keyDataOffsets:
			return true
		}
		extra.Set(key, value)
		return true
	})
	t.Extra = extra
	return nil
}

// RawHeader is the order-preserving tensor-name -> entry mapping that
// reflects the container's physical layout (spec.md §3).
type RawHeader = OrderedMap[RawTensorMetaData]

// dtypeSizes is the closed dtype set from spec.md §6.
var dtypeSizes = map[string]int64{
	"F32":  4,
	"F16":  2,
	"BF16": 2,
	"F64":  8,
	"I64":  8,
	"I32":  4,
	"I16":  2,
	"I8":   1,
	"U8":   1,
	"BOOL": 1,
}

// DtypeSize returns the byte size of a single element of dtype, and
// whether dtype is recognized. Restore rejects unknown dtypes rather
// than falling back to a 1-byte guess (spec.md §6, §9).
func DtypeSize(dtype string) (int64, bool) {
	size, ok := dtypeSizes[dtype]
	return size, ok
}

// ElementCount returns the product of shape, i.e. the number of elements
// a tensor of that shape holds.
func ElementCount(shape []int64) int64 {
	count := int64(1)
	for _, dim := range shape {
		count *= dim
	}
	return count
}

// ValidateName enforces spec.md invariant 3: tensor names never contain
// path separators, "..", NUL, or a leading "/".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("tensor name must not be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("tensor name %q contains a NUL byte", name)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("tensor name %q must not start with '/'", name)
	}
	if strings.Contains(name, "\\") || strings.Contains(name, "/") {
		return fmt.Errorf("tensor name %q must not contain a path separator", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("tensor name %q must not contain '..'", name)
	}
	return nil
}
