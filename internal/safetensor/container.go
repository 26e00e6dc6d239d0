// Package safetensor reads the opaque tensor container format tgit
// ingests: an 8-byte little-endian header length, a JSON header, and a
// flat data region. Files are opened read-only via mmap so ingest never
// copies tensor bytes into the Go heap before hashing.
package safetensor

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/edsrzf/mmap-go"

	"github.com/tgit-dev/tgit/internal/tensorheader"
	"github.com/tgit-dev/tgit/internal/tgiterr"
)

const headerLenPrefix = 8

// Container is a memory-mapped, read-only view of a tensor container
// file. The zero value is not usable; create one with Open.
type Container struct {
	file    *os.File
	mapping mmap.MMap
	header  *tensorheader.RawHeader
	// dataOffset is the byte offset in mapping where the data region
	// begins, i.e. headerLenPrefix + header length.
	dataOffset int64
}

// Open memory-maps path and parses its header. The returned Container
// must be closed with Close when no longer needed.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("safetensor: opening %s: %w", path, tgiterr.ErrIo)
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("safetensor: stat %s: %w", path, tgiterr.ErrIo)
	}
	if info.Size() < headerLenPrefix {
		return nil, fmt.Errorf("safetensor: %s is smaller than the length prefix: %w", path, tgiterr.ErrCorruptHeader)
	}

	mapping, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("safetensor: mapping %s: %w", path, tgiterr.ErrIo)
	}
	closeMapOnErr := true
	defer func() {
		if closeMapOnErr {
			mapping.Unmap()
		}
	}()

	headerLen := binary.LittleEndian.Uint64(mapping[:headerLenPrefix])
	if int64(headerLen) < 0 || headerLenPrefix+int64(headerLen) > int64(len(mapping)) {
		return nil, fmt.Errorf("safetensor: %s declares a header longer than the file: %w", path, tgiterr.ErrCorruptHeader)
	}

	headerBytes := mapping[headerLenPrefix : headerLenPrefix+int64(headerLen)]
	if !utf8.Valid(headerBytes) {
		return nil, fmt.Errorf("safetensor: %s header is not valid UTF-8: %w", path, tgiterr.ErrCorruptHeader)
	}
	header := tensorheader.NewOrderedMap[tensorheader.RawTensorMetaData]()
	if err := header.UnmarshalJSON(headerBytes); err != nil {
		return nil, fmt.Errorf("safetensor: %s header is not valid JSON: %w: %v", path, tgiterr.ErrCorruptHeader, err)
	}

	closeMapOnErr = false
	closeOnErr = false
	return &Container{
		file:       f,
		mapping:    mapping,
		header:     header,
		dataOffset: headerLenPrefix + int64(headerLen),
	}, nil
}

// Header returns the parsed, order-preserving tensor header.
func (c *Container) Header() *tensorheader.RawHeader {
	return c.header
}

// DataOffset is the byte offset of the data region within the mapped
// file, i.e. where a tensor's DataOffsets are relative to.
func (c *Container) DataOffset() int64 {
	return c.dataOffset
}

// Size is the total mapped length of the container.
func (c *Container) Size() int64 {
	return int64(len(c.mapping))
}

// Bytes returns the byte range [start, end) of a tensor, relative to the
// data region, as recorded in its DataOffsets. Returns ErrCorruptTensor
// if the range falls outside the mapped file.
func (c *Container) Bytes(meta tensorheader.RawTensorMetaData) ([]byte, error) {
	start := c.dataOffset + meta.DataOffsets[0]
	end := c.dataOffset + meta.DataOffsets[1]
	if start < c.dataOffset || end < start || end > int64(len(c.mapping)) {
		return nil, fmt.Errorf("safetensor: tensor offsets [%d,%d) out of range: %w", meta.DataOffsets[0], meta.DataOffsets[1], tgiterr.ErrCorruptTensor)
	}
	return c.mapping[start:end], nil
}

// Close unmaps and closes the underlying file.
func (c *Container) Close() error {
	if err := c.mapping.Unmap(); err != nil {
		c.file.Close()
		return fmt.Errorf("safetensor: unmapping: %w", err)
	}
	return c.file.Close()
}

// EncodeHeader serializes header back to the container's on-disk JSON
// form, used by the archive engine when assembling a restored container.
func EncodeHeader(header *tensorheader.RawHeader) ([]byte, error) {
	return json.Marshal(header)
}
