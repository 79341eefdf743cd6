package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/media-librarian/internal/catalog"
)

func TestGather(t *testing.T) {
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	err = store.MediaAdd(
		&catalog.Media{Path: "/a.mp3"},
		&catalog.Media{Path: "/b.mp3"},
	)
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	if _, err := store.MarkMediaDeleted([]string{"/b.mp3"}); err != nil {
		t.Fatalf("MarkMediaDeleted failed: %v", err)
	}
	if _, err := store.PlaylistAdd("/music", nil, false); err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}

	started := time.Now()
	s, err := Gather(store, started)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if s.LiveMedia != 1 || s.Tombstoned != 1 || s.Playlists != 1 {
		t.Errorf("summary = %+v", s)
	}
	if !s.Started.Equal(started) {
		t.Errorf("Started = %v, want %v", s.Started, started)
	}
}
