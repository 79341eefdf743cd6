package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/util"
)

func newScanFixture(t *testing.T) (*catalog.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	root := filepath.Join(dir, "library")
	for _, f := range []string{
		"a.mp3",
		filepath.Join("sub", "deep", "b.mp3"),
		"notes.txt",
		filepath.Join(".hidden", "d.mp3"),
	} {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return store, root
}

func ingest(t *testing.T, store *catalog.Store, paths []string) {
	t.Helper()
	for _, p := range paths {
		if err := store.MediaAdd(&catalog.Media{Path: p}); err != nil {
			t.Fatalf("MediaAdd failed: %v", err)
		}
	}
}

func TestScanPath_FreshFiles(t *testing.T) {
	store, root := newScanFixture(t)

	result, err := ScanPath(context.Background(), store, root, ScanOpts{Profiles: []Profile{ProfileAudio}})
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	if result.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2 (txt and dot-dir filtered)", result.Candidates)
	}
	if len(result.New) != 2 {
		t.Fatalf("New = %v, want 2 entries", result.New)
	}
	// Longest path first
	if filepath.Base(result.New[0]) != "b.mp3" || filepath.Base(result.New[1]) != "a.mp3" {
		t.Errorf("New not ordered longest first: %v", result.New)
	}
	if result.Undeleted != 0 || result.Deleted != 0 {
		t.Errorf("fresh scan touched rows: %+v", result)
	}
}

func TestScanPath_DiffAgainstCatalog(t *testing.T) {
	store, root := newScanFixture(t)
	opts := ScanOpts{Profiles: []Profile{ProfileAudio}}

	first, err := ScanPath(context.Background(), store, root, opts)
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	ingest(t, store, first.New)

	// A second scan over an unchanged tree is a no-op
	second, err := ScanPath(context.Background(), store, root, opts)
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	if len(second.New) != 0 || second.Undeleted != 0 || second.Deleted != 0 {
		t.Errorf("unchanged tree produced changes: %+v", second)
	}

	// Removing a file tombstones its row
	gone := filepath.Join(root, "a.mp3")
	if err := os.Remove(gone); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	third, err := ScanPath(context.Background(), store, root, opts)
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	if third.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", third.Deleted)
	}

	// The file coming back undeletes the row instead of re-ingesting
	if err := os.WriteFile(gone, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	fourth, err := ScanPath(context.Background(), store, root, opts)
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	if fourth.Undeleted != 1 {
		t.Errorf("Undeleted = %d, want 1", fourth.Undeleted)
	}
	if len(fourth.New) != 0 {
		t.Errorf("reappeared file reported as new: %v", fourth.New)
	}
}

func TestScanPath_OfflineGuard(t *testing.T) {
	store, root := newScanFixture(t)
	opts := ScanOpts{Profiles: []Profile{ProfileAudio}}

	first, err := ScanPath(context.Background(), store, root, opts)
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	ingest(t, store, first.New)

	for _, f := range []string{"a.mp3", filepath.Join("sub", "deep", "b.mp3")} {
		if err := os.Remove(filepath.Join(root, f)); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
	}

	// An empty tree that would tombstone every row looks like an unmounted
	// disk and must abort
	if _, err := ScanPath(context.Background(), store, root, opts); !errors.Is(err, util.ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}

	// Force accepts the mass deletion
	result, err := ScanPath(context.Background(), store, root, ScanOpts{
		Profiles: opts.Profiles,
		Force:    true,
	})
	if err != nil {
		t.Fatalf("forced ScanPath failed: %v", err)
	}
	if result.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", result.Deleted)
	}
}

func TestScanPath_MissingRoot(t *testing.T) {
	store, root := newScanFixture(t)
	missing := filepath.Join(root, "never-existed")

	if _, err := ScanPath(context.Background(), store, missing, ScanOpts{}); !errors.Is(err, util.ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}

	result, err := ScanPath(context.Background(), store, missing, ScanOpts{Force: true})
	if err != nil {
		t.Fatalf("forced ScanPath failed: %v", err)
	}
	if result.Candidates != 0 || len(result.New) != 0 {
		t.Errorf("missing root produced candidates: %+v", result)
	}
}

func TestScanPath_Excludes(t *testing.T) {
	store, root := newScanFixture(t)

	result, err := ScanPath(context.Background(), store, root, ScanOpts{
		Profiles: []Profile{ProfileAudio},
		Excludes: []string{"deep"},
	})
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	if result.Candidates != 1 {
		t.Errorf("Candidates = %d, want 1 after exclude", result.Candidates)
	}
}

func TestScanPath_AllFiles(t *testing.T) {
	store, root := newScanFixture(t)

	result, err := ScanPath(context.Background(), store, root, ScanOpts{ScanAllFiles: true})
	if err != nil {
		t.Fatalf("ScanPath failed: %v", err)
	}
	// notes.txt is picked up, the dot-dir still is not
	if result.Candidates != 3 {
		t.Errorf("Candidates = %d, want 3", result.Candidates)
	}
}
