package gc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tgit-dev/tgit/internal/manifest"
	"github.com/tgit-dev/tgit/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "blobs"))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func writeManifest(t *testing.T, dir, name string, hash string) string {
	t.Helper()
	m := manifest.Manifest{
		Version:   manifest.CurrentVersion,
		TotalSize: 4,
		Tensors: map[string]manifest.Tensor{
			"t": {Shape: []int64{1}, Dtype: "F32", Hash: hash, Index: 0},
		},
	}
	data, err := manifest.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// S5 — GC safety scenario from spec.md §8.
func TestScenarioS5GCSafety(t *testing.T) {
	s := newTestStore(t)
	h1 := mustInsert(t, s, []byte("payload one"))
	h2 := mustInsert(t, s, []byte("payload two"))
	h3 := mustInsert(t, s, []byte("payload three"))

	dir := t.TempDir()
	inScope := writeManifest(t, dir, "in_scope.tgit.json", h1)
	// out-of-scope manifest referencing h2 lives elsewhere; it is simply
	// never passed to Collect.
	_ = writeManifest(t, t.TempDir(), "out_of_scope.tgit.json", h2)

	report, err := Collect(s, []string{inScope}, false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Kept != 1 || report.Deleted != 2 {
		t.Fatalf("report = %+v, want Kept=1 Deleted=2", report)
	}

	hashes, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != h1 {
		t.Fatalf("store after GC = %v, want only [%s]", hashes, h1)
	}
	if s.Has(h2) || s.Has(h3) {
		t.Fatal("h2 and h3 should have been swept")
	}
}

func TestCollectDryRunDeletesNothing(t *testing.T) {
	s := newTestStore(t)
	h1 := mustInsert(t, s, []byte("keep me"))
	mustInsert(t, s, []byte("sweep me"))

	dir := t.TempDir()
	inScope := writeManifest(t, dir, "m.tgit.json", h1)

	report, err := Collect(s, []string{inScope}, true)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Deleted != 1 {
		t.Fatalf("dry-run report.Deleted = %d, want 1 (would-delete count)", report.Deleted)
	}
	hashes, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("dry run should not have deleted anything, store has %d blobs, want 2", len(hashes))
	}
}

func TestCollectSkipsUnreadableManifest(t *testing.T) {
	s := newTestStore(t)
	h1 := mustInsert(t, s, []byte("referenced"))

	report, err := Collect(s, []string{filepath.Join(t.TempDir(), "missing.tgit.json")}, false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Deleted != 1 {
		t.Fatalf("report.Deleted = %d, want 1 (unreadable manifest contributes nothing to the keep-set)", report.Deleted)
	}
	if s.Has(h1) {
		t.Fatal("h1 should have been swept since no readable manifest referenced it")
	}
}

func mustInsert(t *testing.T, s *store.Store, data []byte) string {
	t.Helper()
	hash, err := s.Insert(data)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return hash
}
