package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMediaAdd_Roundtrip(t *testing.T) {
	store := newTestStore(t)

	in := &Media{
		Path:        "/music/a.flac",
		Size:        1234,
		Duration:    180,
		Width:       0,
		AudioCodecs: "flac",
		AudioCount:  1,
		Title:       "Song",
		Uploader:    "Artist",
		Language:    "eng",
		Type:        "audio/flac",
		Corruption:  -1,
	}
	if err := store.MediaAdd(in); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	if in.ID == 0 {
		t.Error("MediaAdd did not backfill the id")
	}

	out, err := store.GetMediaByPath("/music/a.flac")
	if err != nil {
		t.Fatalf("GetMediaByPath failed: %v", err)
	}
	if out == nil {
		t.Fatal("row not found")
	}
	if out.Size != 1234 || out.Duration != 180 || out.AudioCodecs != "flac" {
		t.Errorf("roundtrip mismatch: %+v", out)
	}
	if out.Title != "Song" || out.Uploader != "Artist" {
		t.Errorf("text fields mismatch: %+v", out)
	}
	if out.Corruption != -1 {
		t.Errorf("Corruption = %d, want -1 (never checked)", out.Corruption)
	}
}

func TestGetMediaByPath_Absent(t *testing.T) {
	store := newTestStore(t)

	m, err := store.GetMediaByPath("/nope.mp3")
	if err != nil {
		t.Fatalf("GetMediaByPath failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for absent path, got %+v", m)
	}
}

func TestMediaAdd_NilAndEmpty(t *testing.T) {
	store := newTestStore(t)

	if err := store.MediaAdd(nil, &Media{Path: "/a.mp3"}, nil); err != nil {
		t.Fatalf("MediaAdd should skip nil entries: %v", err)
	}
	if err := store.MediaAdd(&Media{}); err == nil {
		t.Error("MediaAdd accepted an entry without a path")
	}
}

func TestMediaAdd_MergePreservesValues(t *testing.T) {
	store := newTestStore(t)

	err := store.MediaAdd(&Media{
		Path:     "/music/a.mp3",
		Size:     1000,
		Title:    "Original",
		Uploader: "Someone",
	})
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	first, _ := store.GetMediaByPath("/music/a.mp3")

	// Re-ingest with sparse data: empty fields must survive the merge
	err = store.MediaAdd(&Media{Path: "/music/a.mp3", Size: 2000})
	if err != nil {
		t.Fatalf("second MediaAdd failed: %v", err)
	}

	out, _ := store.GetMediaByPath("/music/a.mp3")
	if out.Size != 2000 {
		t.Errorf("Size = %d, want 2000 (incoming wins when set)", out.Size)
	}
	if out.Title != "Original" || out.Uploader != "Someone" {
		t.Errorf("stored values lost in merge: %+v", out)
	}
	if out.TimeCreated != first.TimeCreated {
		t.Errorf("TimeCreated changed: %d vs %d", out.TimeCreated, first.TimeCreated)
	}
	if out.DownloadAttempts != 1 {
		t.Errorf("DownloadAttempts = %d, want 1 after one re-ingest", out.DownloadAttempts)
	}
	if out.ID != first.ID {
		t.Errorf("merge created a new row: %d vs %d", out.ID, first.ID)
	}
}

func TestMediaAdd_AttemptsClamp(t *testing.T) {
	old := &Media{DownloadAttempts: MaxDownloadAttempts}
	m := &Media{}
	mergeMedia(m, old)
	if m.DownloadAttempts != MaxDownloadAttempts {
		t.Errorf("attempts = %d, want clamp at %d", m.DownloadAttempts, MaxDownloadAttempts)
	}
}

func TestMediaAdd_WebpathMerge(t *testing.T) {
	store := newTestStore(t)

	// Planned download keyed by URL
	err := store.MediaAdd(&Media{
		Path:  "http://example.com/song.mp3",
		Title: "Planned",
	})
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	// Downloaded file arrives with the URL as webpath: merges, not duplicates
	err = store.MediaAdd(&Media{
		Path:    "/dl/song.mp3",
		Webpath: "http://example.com/song.mp3",
		Size:    999,
	})
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	out, _ := store.GetMediaByPath("/dl/song.mp3")
	if out == nil {
		t.Fatal("local row not found")
	}
	if out.Title != "Planned" {
		t.Errorf("metadata from the planned row lost: %+v", out)
	}
}

func TestMarkMediaDeletedUndeleted(t *testing.T) {
	store := newTestStore(t)

	err := store.MediaAdd(&Media{Path: "/a.mp3"}, &Media{Path: "/b.mp3"})
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	n, err := store.MarkMediaDeleted([]string{"/a.mp3", "/b.mp3", "/ghost.mp3"})
	if err != nil {
		t.Fatalf("MarkMediaDeleted failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}

	// Deleting already-deleted rows is a no-op
	n, err = store.MarkMediaDeleted([]string{"/a.mp3"})
	if err != nil {
		t.Fatalf("MarkMediaDeleted failed: %v", err)
	}
	if n != 0 {
		t.Errorf("re-delete changed %d rows, want 0", n)
	}

	n, err = store.MarkMediaUndeleted([]string{"/a.mp3"})
	if err != nil {
		t.Fatalf("MarkMediaUndeleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("undeleted %d rows, want 1", n)
	}
	m, _ := store.GetMediaByPath("/a.mp3")
	if !m.Live() {
		t.Error("row still tombstoned after undelete")
	}
}

func TestMarkMediaDeleted_Empty(t *testing.T) {
	store := newTestStore(t)
	n, err := store.MarkMediaDeleted(nil)
	if err != nil {
		t.Fatalf("MarkMediaDeleted failed: %v", err)
	}
	if n != 0 {
		t.Errorf("empty batch changed %d rows", n)
	}
}

func TestPathsUnder(t *testing.T) {
	store := newTestStore(t)

	err := store.MediaAdd(
		&Media{Path: "/data/music/a.mp3"},
		&Media{Path: "/data/music/sub/b.mp3"},
		&Media{Path: "/data/musical/c.mp3"},
	)
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	if _, err := store.MarkMediaDeleted([]string{"/data/music/sub/b.mp3"}); err != nil {
		t.Fatalf("MarkMediaDeleted failed: %v", err)
	}

	live, deleted, err := store.PathsUnder("/data/music")
	if err != nil {
		t.Fatalf("PathsUnder failed: %v", err)
	}
	if len(live) != 1 || live[0] != "/data/music/a.mp3" {
		t.Errorf("live = %v", live)
	}
	if len(deleted) != 1 || deleted[0] != "/data/music/sub/b.mp3" {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)

	err := store.MediaAdd(&Media{Path: "/dl/a.mp3", Webpath: "http://x/a.mp3"})
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	for _, probe := range []string{"/dl/a.mp3", "http://x/a.mp3"} {
		ok, err := store.Exists(probe)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !ok {
			t.Errorf("Exists(%q) = false, want true", probe)
		}
	}
	ok, _ := store.Exists("http://x/other.mp3")
	if ok {
		t.Error("Exists matched an unknown path")
	}
}

func TestSetCorruption(t *testing.T) {
	store := newTestStore(t)

	if err := store.MediaAdd(&Media{Path: "/a.mkv"}); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	if err := store.SetCorruption("/a.mkv", 15); err != nil {
		t.Fatalf("SetCorruption failed: %v", err)
	}
	m, _ := store.GetMediaByPath("/a.mkv")
	if m.Corruption != 15 {
		t.Errorf("Corruption = %d, want 15", m.Corruption)
	}
}

func TestDownloadCommit_Success(t *testing.T) {
	store := newTestStore(t)

	webpath := "http://example.com/file.mp3"
	if err := store.MediaAdd(&Media{Path: webpath, Title: "Planned"}); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	local := filepath.Join(t.TempDir(), "file.mp3")
	if err := os.WriteFile(local, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	err := store.DownloadCommit(webpath, &Media{Size: 4}, CommitOpts{
		LocalPath:          local,
		DeleteWebpathEntry: true,
	})
	if err != nil {
		t.Fatalf("DownloadCommit failed: %v", err)
	}

	m, _ := store.GetMediaByPath(local)
	if m == nil {
		t.Fatal("local row missing")
	}
	if m.Webpath != webpath {
		t.Errorf("Webpath = %q, want origin %q", m.Webpath, webpath)
	}
	if m.Title != "Planned" {
		t.Errorf("planned metadata lost: %+v", m)
	}
	if m.TimeDownloaded == 0 {
		t.Error("TimeDownloaded not stamped")
	}

	old, _ := store.GetMediaByPath(webpath)
	if old != nil {
		t.Error("planned webpath row should be removed on success")
	}
}

func TestDownloadCommit_Failure(t *testing.T) {
	store := newTestStore(t)

	webpath := "http://example.com/file.mp3"
	if err := store.MediaAdd(&Media{Path: webpath}); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	err := store.DownloadCommit(webpath, nil, CommitOpts{Error: "connection refused"})
	if err != nil {
		t.Fatalf("DownloadCommit failed: %v", err)
	}

	m, _ := store.GetMediaByPath(webpath)
	if m == nil {
		t.Fatal("webpath row must survive a failure")
	}
	if m.Error != "connection refused" {
		t.Errorf("Error = %q", m.Error)
	}
	if m.DownloadAttempts < 1 {
		t.Errorf("DownloadAttempts = %d, want bumped", m.DownloadAttempts)
	}
	if !m.Live() {
		t.Error("failure should not tombstone the row")
	}
}

func TestDownloadCommit_NotFound(t *testing.T) {
	store := newTestStore(t)

	webpath := "http://example.com/gone.mp3"
	if err := store.MediaAdd(&Media{Path: webpath}); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	err := store.DownloadCommit(webpath, nil, CommitOpts{Error: "404", MarkDeleted: true})
	if err != nil {
		t.Fatalf("DownloadCommit failed: %v", err)
	}

	m, _ := store.GetMediaByPath(webpath)
	if m.Live() {
		t.Error("404 row should be tombstoned")
	}
	if m.Error != "404" {
		t.Errorf("Error = %q, want 404", m.Error)
	}
}

func TestDownloadCommit_EmptyFile(t *testing.T) {
	store := newTestStore(t)

	webpath := "http://example.com/empty.mp3"
	if err := store.MediaAdd(&Media{Path: webpath}); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.mp3")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	err := store.DownloadCommit(webpath, nil, CommitOpts{LocalPath: empty, DeleteWebpathEntry: true})
	if err != nil {
		t.Fatalf("DownloadCommit failed: %v", err)
	}

	// Treated as failure: webpath row kept, no local row
	m, _ := store.GetMediaByPath(webpath)
	if m == nil {
		t.Fatal("webpath row lost")
	}
	if m.Error != "Empty download" {
		t.Errorf("Error = %q, want 'Empty download'", m.Error)
	}
	local, _ := store.GetMediaByPath(empty)
	if local != nil {
		t.Error("empty file must not become a catalog row")
	}
}

func TestTruncateMediaForPlaylist(t *testing.T) {
	store := newTestStore(t)

	id, err := store.PlaylistAdd("ssh://host", &Playlist{ExtractorKey: ExtractorComputer}, false)
	if err != nil {
		t.Fatalf("PlaylistAdd failed: %v", err)
	}
	err = store.MediaAdd(
		&Media{PlaylistsID: id, Path: "ssh://host/dev/sda", Type: "disk"},
		&Media{PlaylistsID: id, Path: "ssh://host/dev/sdb", Type: "disk"},
	)
	if err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	if err := store.TruncateMediaForPlaylist(id); err != nil {
		t.Fatalf("TruncateMediaForPlaylist failed: %v", err)
	}
	live, deleted, err := store.PathsUnder("ssh://host")
	if err != nil {
		t.Fatalf("PathsUnder failed: %v", err)
	}
	if len(live)+len(deleted) != 0 {
		t.Errorf("rows survived the truncate: %v %v", live, deleted)
	}
}
