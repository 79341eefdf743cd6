package catalog

import "testing"

func TestPlaylistAdd_Defaults(t *testing.T) {
	store := newTestStore(t)

	id, err := store.PlaylistAdd("/music", nil, false)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero playlist id")
	}

	p, err := store.GetPlaylist("/music")
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if p.ExtractorKey != ExtractorLocal {
		t.Errorf("ExtractorKey = %q, want %q", p.ExtractorKey, ExtractorLocal)
	}
	if p.ExtractorConfig != "{}" {
		t.Errorf("ExtractorConfig = %q, want {}", p.ExtractorConfig)
	}
	if p.HoursUpdateDelay != 70 {
		t.Errorf("HoursUpdateDelay = %d, want 70", p.HoursUpdateDelay)
	}
}

func TestPlaylistAdd_Upsert(t *testing.T) {
	store := newTestStore(t)

	first, err := store.PlaylistAdd("/music", &Playlist{Title: "old"}, false)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	second, err := store.PlaylistAdd("/music", &Playlist{Uploader: "someone"}, false)
	if err != nil {
		t.Fatalf("second PlaylistAdd failed: %v", err)
	}
	if first != second {
		t.Errorf("upsert created a new row: %d vs %d", first, second)
	}

	p, _ := store.GetPlaylist("/music")
	if p.Title != "old" {
		t.Errorf("empty incoming title overwrote stored one: %q", p.Title)
	}
	if p.Uploader != "someone" {
		t.Errorf("uploader not updated: %q", p.Uploader)
	}
}

func TestPlaylistAdd_SubpathCovered(t *testing.T) {
	store := newTestStore(t)

	parent, err := store.PlaylistAdd("/music", nil, true)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}

	// A narrower path is already covered by the parent
	child, err := store.PlaylistAdd("/music/albums", nil, true)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	if child != parent {
		t.Errorf("expected parent id %d, got %d", parent, child)
	}

	// A sibling is not covered
	sibling, err := store.PlaylistAdd("/videos", nil, true)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	if sibling == parent {
		t.Error("sibling folded into unrelated playlist")
	}
}

func TestPlaylistAdd_FoldsNarrower(t *testing.T) {
	store := newTestStore(t)

	narrow, err := store.PlaylistAdd("/music/albums", nil, true)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}

	// Adding the parent folds the narrower playlist in
	wide, err := store.PlaylistAdd("/music", nil, true)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	if wide == narrow {
		t.Fatal("expected a fresh id for the wider playlist")
	}

	p, err := store.GetPlaylist("/music/albums")
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if p != nil {
		t.Error("narrower playlist should have been removed")
	}
}

func TestRefreshCadence(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.PlaylistAdd("/music", nil, false); err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}

	if err := store.UpdateMoreFrequently("/music"); err != nil {
		t.Fatalf("UpdateMoreFrequently failed: %v", err)
	}
	p, _ := store.GetPlaylist("/music")
	if p.HoursUpdateDelay != 21 {
		t.Errorf("after speedup delay = %d, want 21", p.HoursUpdateDelay)
	}

	if err := store.UpdateLessFrequently("/music"); err != nil {
		t.Fatalf("UpdateLessFrequently failed: %v", err)
	}
	p, _ = store.GetPlaylist("/music")
	if p.HoursUpdateDelay != 42 {
		t.Errorf("after slowdown delay = %d, want 42", p.HoursUpdateDelay)
	}
}

func TestRefreshCadence_Bounds(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.PlaylistAdd("/music", &Playlist{HoursUpdateDelay: 1}, false); err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	if err := store.UpdateMoreFrequently("/music"); err != nil {
		t.Fatalf("UpdateMoreFrequently failed: %v", err)
	}
	p, _ := store.GetPlaylist("/music")
	if p.HoursUpdateDelay != 1 {
		t.Errorf("floor broken: delay = %d, want 1", p.HoursUpdateDelay)
	}

	if _, err := store.PlaylistAdd("/videos", &Playlist{HoursUpdateDelay: 8000}, false); err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	if err := store.UpdateLessFrequently("/videos"); err != nil {
		t.Fatalf("UpdateLessFrequently failed: %v", err)
	}
	p, _ = store.GetPlaylist("/videos")
	if p.HoursUpdateDelay != 8760 {
		t.Errorf("cap broken: delay = %d, want 8760", p.HoursUpdateDelay)
	}
}

func TestPlaylistsToRefresh(t *testing.T) {
	store := newTestStore(t)
	store.SetAppStart(1_000_000)

	if _, err := store.PlaylistAdd("/music", nil, false); err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}

	// Freshly touched: not due
	due, err := store.PlaylistsToRefresh(false)
	if err != nil {
		t.Fatalf("PlaylistsToRefresh failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("fresh playlist already due: %d", len(due))
	}

	// Force returns it regardless
	due, err = store.PlaylistsToRefresh(true)
	if err != nil {
		t.Fatalf("PlaylistsToRefresh failed: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("force should list every live playlist, got %d", len(due))
	}

	// Jump past the cadence: due
	store.SetAppStart(1_000_000 + 71*3600)
	due, err = store.PlaylistsToRefresh(false)
	if err != nil {
		t.Fatalf("PlaylistsToRefresh failed: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("expected playlist due after cadence elapsed, got %d", len(due))
	}
}

func TestMarkPlaylistsDeletedUnder(t *testing.T) {
	store := newTestStore(t)

	inside, err := store.PlaylistAdd("/mnt/disk/music", nil, false)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	outside, err := store.PlaylistAdd("/home/music", nil, false)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	err = store.MediaAdd(
		&Media{PlaylistsID: inside, Path: "/mnt/disk/music/a.mp3"},
		&Media{PlaylistsID: outside, Path: "/home/music/b.mp3"},
	)
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	n, err := store.MarkPlaylistsDeletedUnder("/mnt/disk")
	if err != nil {
		t.Fatalf("MarkPlaylistsDeletedUnder failed: %v", err)
	}
	if n != 1 {
		t.Errorf("tombstoned %d playlists, want 1", n)
	}

	m, _ := store.GetMediaByPath("/mnt/disk/music/a.mp3")
	if m.Live() {
		t.Error("child media should inherit the tombstone")
	}
	m, _ = store.GetMediaByPath("/home/music/b.mp3")
	if !m.Live() {
		t.Error("unrelated media was tombstoned")
	}
}
