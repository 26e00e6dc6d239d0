// Package archive implements the archive engine: parallel ingest of a
// tensor container into a manifest plus (optionally) a populated object
// store, and deterministic restore of a manifest back into a container.
//
// Ingest's bounded fan-out is grounded on the semaphore-pool style of
// bazel-contrib-rules_img/img_tool/pkg/persistentworker/worker.go,
// generalized from "bounded concurrent request handlers" to "bounded
// concurrent tensor hashers" and implemented with
// golang.org/x/sync/errgroup.SetLimit, the teacher's own concurrency
// idiom (cmd/deploy/deploy.go, pkg/serve/bes/syncer/syncer.go) rather
// than a hand-rolled channel pool.
package archive

import (
	"encoding/hex"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"

	"github.com/tgit-dev/tgit/internal/manifest"
	"github.com/tgit-dev/tgit/internal/safetensor"
	"github.com/tgit-dev/tgit/internal/store"
	"github.com/tgit-dev/tgit/internal/tensorheader"
)

// ingestEntry is one header entry together with its captured physical
// index, read before dispatch so the result is independent of
// goroutine scheduling order (spec.md's parallelism contract).
type ingestEntry struct {
	index int
	name  string
	meta  tensorheader.RawTensorMetaData
}

// Process hashes every tensor in c in parallel, optionally inserting
// each tensor's bytes into s, and returns the resulting manifest.
// Tensors whose offsets exceed the mapped container are dropped with a
// warning rather than failing the whole ingest.
func Process(c *safetensor.Container, s *store.Store, saveBlobs bool) (manifest.Manifest, error) {
	var entries []ingestEntry
	i := 0
	c.Header().Range(func(name string, meta tensorheader.RawTensorMetaData) bool {
		entries = append(entries, ingestEntry{index: i, name: name, meta: meta})
		i++
		return true
	})

	results := make([]*manifest.Tensor, len(entries))
	names := make([]string, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())

	for idx, entry := range entries {
		idx, entry := idx, entry
		g.Go(func() error {
			data, err := c.Bytes(entry.meta)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: skipping tensor %q: %v\n", entry.name, err)
				return nil
			}

			sum := blake3.Sum256(data)
			hash := hex.EncodeToString(sum[:])

			if saveBlobs {
				if _, err := s.Insert(data); err != nil {
					return fmt.Errorf("archive: inserting tensor %q into store: %w", entry.name, err)
				}
			}

			results[idx] = &manifest.Tensor{
				Shape: entry.meta.Shape,
				Dtype: entry.meta.Dtype,
				Hash:  hash,
				Index: entry.index,
				Extra: entry.meta.Extra,
			}
			names[idx] = entry.name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return manifest.Manifest{}, err
	}

	tensors := make(map[string]manifest.Tensor, len(entries))
	for idx, t := range results {
		if t == nil {
			continue // dropped: corrupt offsets
		}
		tensors[names[idx]] = *t
	}

	return manifest.Manifest{
		Version:   manifest.CurrentVersion,
		TotalSize: c.Size(),
		Tensors:   tensors,
	}, nil
}
