package catalog

import "testing"

func TestBlocklistAdd_InvalidKey(t *testing.T) {
	store := newTestStore(t)
	if err := store.BlocklistAdd("size", "%x%"); err == nil {
		t.Error("expected error for non-matchable column")
	}
}

func TestBlocked(t *testing.T) {
	store := newTestStore(t)

	adds := [][2]string{
		{"uploader", "spam channel"},
		{"path", "%/ads/%"},
		{"title", "%clickbait%"},
	}
	for _, a := range adds {
		if err := store.BlocklistAdd(a[0], a[1]); err != nil {
			t.Fatalf("BlocklistAdd(%q, %q) failed: %v", a[0], a[1], err)
		}
	}
	rules, err := store.BlocklistRules()
	if err != nil {
		t.Fatalf("BlocklistRules failed: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(rules))
	}

	testCases := []struct {
		name    string
		media   *Media
		blocked bool
	}{
		{
			name:    "exact uploader match case-insensitive",
			media:   &Media{Uploader: "Spam Channel"},
			blocked: true,
		},
		{
			name:    "uploader substring does not match exact rule",
			media:   &Media{Uploader: "spam channel extra"},
			blocked: false,
		},
		{
			name:    "path wildcard",
			media:   &Media{Path: "http://x/ads/banner.gif"},
			blocked: true,
		},
		{
			name:    "title wildcard",
			media:   &Media{Title: "Ultimate CLICKBAIT compilation"},
			blocked: true,
		},
		{
			name:    "clean row",
			media:   &Media{Path: "/music/ok.mp3", Title: "Song", Uploader: "artist"},
			blocked: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Blocked(rules, tc.media); got != tc.blocked {
				t.Errorf("Blocked = %v, want %v", got, tc.blocked)
			}
		})
	}
}

func TestLikeMatch(t *testing.T) {
	testCases := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"abc", "abc", true},
		{"abc", "abcd", false},
		{"%abc", "xxabc", true},
		{"abc%", "abcxx", true},
		{"%abc%", "xxabcxx", true},
		{"a_c", "abc", true},
		{"a_c", "ac", false},
		{"%%", "anything", true},
		{"", "anything", false},
		{"ABC", "abc", true},
	}

	for _, tc := range testCases {
		if got := likeMatch(tc.pattern, tc.value); got != tc.want {
			t.Errorf("likeMatch(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}
