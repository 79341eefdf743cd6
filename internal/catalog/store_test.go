package catalog

import (
	"path/filepath"
	"testing"
)

// newTestStore opens a fresh catalog in a temp directory
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_CreatesSchema(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"playlists", "media", "captions", "history", "blocklist", "schema_version"} {
		var count int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("schema query failed: %v", err)
		}
		if count != 1 {
			t.Errorf("table %s missing", table)
		}
	}

	if err := store.CheckIntegrity(); err != nil {
		t.Errorf("CheckIntegrity failed on fresh catalog: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.PlaylistAdd("/music", nil, false); err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	store.Close()

	// Second open must not re-run migrations or lose data
	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	p, err := store.GetPlaylist("/music")
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if p == nil {
		t.Error("playlist lost across reopen")
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)

	live, tombstoned, playlists, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if live != 0 || tombstoned != 0 || playlists != 0 {
		t.Errorf("fresh catalog counts = %d/%d/%d, want zeros", live, tombstoned, playlists)
	}

	id, err := store.PlaylistAdd("/music", nil, false)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	err = store.MediaAdd(
		&Media{PlaylistsID: id, Path: "/music/a.mp3"},
		&Media{PlaylistsID: id, Path: "/music/b.mp3"},
	)
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	if _, err := store.MarkMediaDeleted([]string{"/music/b.mp3"}); err != nil {
		t.Fatalf("MarkMediaDeleted failed: %v", err)
	}

	live, tombstoned, playlists, err = store.Counts()
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if live != 1 || tombstoned != 1 || playlists != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", live, tombstoned, playlists)
	}
}

func TestOptimize(t *testing.T) {
	store := newTestStore(t)
	if err := store.Optimize(); err != nil {
		t.Errorf("Optimize failed: %v", err)
	}
}
