// Package gc implements the garbage collector: mark referenced hashes
// across a caller-supplied set of manifests, then sweep the object store
// of anything unreferenced. No direct corpus precedent for a GC loop
// exists in the retrieved examples; composed in the style of
// bazel-contrib-rules_img/img_tool/pkg/load/loader.go, which builds a
// reconciliation pass out of smaller verified steps (read-all, compute a
// keep-set, apply), grounded on the Object Store's Enumerate contract.
package gc

import (
	"fmt"
	"os"

	"github.com/tgit-dev/tgit/internal/manifest"
	"github.com/tgit-dev/tgit/internal/store"
)

// Report summarizes the outcome of a collection run.
type Report struct {
	Kept    int
	Deleted int
	// DeletedHashes lists what was removed, for callers that want to log
	// or audit it beyond the summary counts.
	DeletedHashes []string
}

// Collect marks every hash referenced by the manifests at manifestPaths,
// then sweeps s of any blob not in that set. If dryRun is true (the
// caller does not hold the repository lock), nothing is deleted and the
// report reflects what would have been removed.
func Collect(s *store.Store, manifestPaths []string, dryRun bool) (Report, error) {
	referenced := make(map[string]struct{})

	for _, path := range manifestPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping unreadable manifest %s: %v\n", path, err)
			continue
		}
		m, err := manifest.Decode(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping invalid manifest %s: %v\n", path, err)
			continue
		}
		markReferenced(m, referenced)
	}

	hashes, err := s.Enumerate()
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, hash := range hashes {
		if _, ok := referenced[hash]; ok {
			report.Kept++
			continue
		}
		if dryRun {
			report.Deleted++
			report.DeletedHashes = append(report.DeletedHashes, hash)
			continue
		}
		if err := s.Remove(hash); err != nil {
			return report, err
		}
		report.Deleted++
		report.DeletedHashes = append(report.DeletedHashes, hash)
	}

	if report.Deleted > 0 {
		fmt.Fprintf(os.Stderr, "warning: garbage collection scope was limited to %d manifest(s); blobs needed by other projects sharing this store may have been removed\n", len(manifestPaths))
	}
	return report, nil
}

func markReferenced(m manifest.Manifest, referenced map[string]struct{}) {
	for _, tensor := range m.Tensors {
		referenced[tensor.Hash] = struct{}{}
	}
}
