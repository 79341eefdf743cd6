package catalog

import "testing"

func TestCaptions_ReplaceSemantics(t *testing.T) {
	store := newTestStore(t)

	m := &Media{
		Path: "/video/a.mkv",
		Captions: []Caption{
			{Time: 0, Text: "Intro"},
			{Time: 300, Text: "Chapter Two"},
			{Time: 150, Text: ""},
		},
	}
	if err := store.MediaAdd(m); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}

	captions, err := store.GetCaptions(m.ID)
	if err != nil {
		t.Fatalf("GetCaptions failed: %v", err)
	}
	if len(captions) != 2 {
		t.Fatalf("got %d captions, want 2 (empty text dropped)", len(captions))
	}
	if captions[0].Time != 0 || captions[1].Time != 300 {
		t.Errorf("captions not ordered by time: %+v", captions)
	}

	// Re-probing replaces the whole set
	m2 := &Media{
		Path:     "/video/a.mkv",
		Captions: []Caption{{Time: 10, Text: "Rewritten"}},
	}
	if err := store.MediaAdd(m2); err != nil {
		t.Fatalf("second MediaAdd failed: %v", err)
	}
	captions, _ = store.GetCaptions(m.ID)
	if len(captions) != 1 || captions[0].Text != "Rewritten" {
		t.Errorf("captions not replaced: %+v", captions)
	}
}

func TestHistory_Roundtrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.MediaAdd(&Media{Path: "/a.mp3"}); err != nil {
		t.Fatalf("MediaAdd failed: %v", err)
	}
	m, _ := store.GetMediaByPath("/a.mp3")

	events := []*History{
		{MediaID: m.ID, TimePlayed: 100, Playhead: 30},
		{MediaID: m.ID, TimePlayed: 200, Done: true},
	}
	for _, h := range events {
		if err := store.AddHistory(h); err != nil {
			t.Fatalf("AddHistory failed: %v", err)
		}
		if h.ID == 0 {
			t.Error("AddHistory did not backfill the id")
		}
	}

	got, err := store.GetHistory(m.ID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	// Newest first
	if got[0].TimePlayed != 200 || !got[0].Done {
		t.Errorf("first event wrong: %+v", got[0])
	}
	if got[1].Playhead != 30 {
		t.Errorf("playhead lost: %+v", got[1])
	}
}
