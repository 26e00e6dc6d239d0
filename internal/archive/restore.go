package archive

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tgit-dev/tgit/internal/manifest"
	"github.com/tgit-dev/tgit/internal/safetensor"
	"github.com/tgit-dev/tgit/internal/store"
	"github.com/tgit-dev/tgit/internal/tensorheader"
	"github.com/tgit-dev/tgit/internal/tgiterr"
)

// placement records where a hash's bytes live in the container being
// built, for shared-weight deduplication.
type placement struct {
	start, end int64
}

type orderedTensor struct {
	name   string
	tensor manifest.Tensor
}

// Restore writes a tensor container to outputPath from m, honoring an
// optional comma-separated substring filter (spec.md §4.C). It follows
// the exact two-pass algorithm of
// original_source/vekt_core/src/storage.rs's VektManifest::restore:
// pass 1 builds the header with alignment and shared-weight dedup, pass
// 2 reads each blob whole, verifies it, and writes it.
func Restore(m manifest.Manifest, s *store.Store, outputPath string, filter string) error {
	for name := range m.Tensors {
		if err := tensorheader.ValidateName(name); err != nil {
			return fmt.Errorf("archive: %w: %v", tgiterr.ErrInvalidName, err)
		}
	}

	ordered := filterAndOrder(m, filter)

	header := tensorheader.NewOrderedMap[tensorheader.RawTensorMetaData]()
	placements := make(map[string]placement, len(ordered))
	var offset int64

	for _, ot := range ordered {
		tensor := ot.tensor
		var dataOffsets [2]int64

		if p, ok := placements[tensor.Hash]; ok {
			dataOffsets = [2]int64{p.start, p.end}
		} else {
			offset = alignUp8(offset)
			size, err := tensorByteSize(tensor)
			if err != nil {
				return err
			}
			start := offset
			end := offset + size
			dataOffsets = [2]int64{start, end}
			placements[tensor.Hash] = placement{start: start, end: end}
			offset = end
		}

		header.Set(ot.name, tensorheader.RawTensorMetaData{
			Shape:       tensor.Shape,
			Dtype:       tensor.Dtype,
			DataOffsets: dataOffsets,
			Extra:       tensor.Extra,
		})
	}

	headerBytes, err := safetensor.EncodeHeader(header)
	if err != nil {
		return fmt.Errorf("archive: encoding header: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("archive: creating %s: %w", outputPath, tgiterr.ErrIo)
	}
	defer f.Close()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("archive: writing header length: %w", tgiterr.ErrIo)
	}
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("archive: writing header: %w", tgiterr.ErrIo)
	}

	written := make(map[string]bool, len(placements))
	var pos int64
	for _, ot := range ordered {
		tensor := ot.tensor
		if written[tensor.Hash] {
			continue
		}

		pad := padTo8(pos)
		if pad > 0 {
			if _, err := f.Write(make([]byte, pad)); err != nil {
				return fmt.Errorf("archive: writing alignment padding: %w", tgiterr.ErrIo)
			}
			pos += pad
		}

		data, err := s.Read(tensor.Hash)
		if err != nil {
			return fmt.Errorf("archive: tensor %q: %w", ot.name, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("archive: writing tensor %q: %w", ot.name, tgiterr.ErrIo)
		}
		pos += int64(len(data))
		written[tensor.Hash] = true
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("archive: flushing %s: %w", outputPath, tgiterr.ErrIo)
	}
	return nil
}

// filterAndOrder keeps tensors matching filter (comma-split, substring
// containment; empty filter keeps all) and orders them by their
// original physical index, ascending.
func filterAndOrder(m manifest.Manifest, filter string) []orderedTensor {
	var terms []string
	if filter != "" {
		for _, term := range strings.Split(filter, ",") {
			terms = append(terms, strings.TrimSpace(term))
		}
	}

	var ordered []orderedTensor
	for name, tensor := range m.Tensors {
		if len(terms) > 0 && !matchesAny(name, terms) {
			continue
		}
		ordered = append(ordered, orderedTensor{name: name, tensor: tensor})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].tensor.Index < ordered[j].tensor.Index
	})
	return ordered
}

func matchesAny(name string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

func tensorByteSize(t manifest.Tensor) (int64, error) {
	elemSize, ok := tensorheader.DtypeSize(t.Dtype)
	if !ok {
		return 0, fmt.Errorf("archive: unknown dtype %q: %w", t.Dtype, tgiterr.ErrCorruptTensor)
	}
	return tensorheader.ElementCount(t.Shape) * elemSize, nil
}

func alignUp8(offset int64) int64 {
	return offset + padTo8(offset)
}

func padTo8(pos int64) int64 {
	return (8 - (pos % 8)) % 8
}
