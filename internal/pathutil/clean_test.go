package pathutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		opts     CleanOpts
		expected string
	}{
		{
			name:     "plain path unchanged",
			input:    "/music/Artist/Album/01 Track.flac",
			expected: "/music/Artist/Album/01 Track.flac",
		},
		{
			name:     "control characters stripped",
			input:    "/music/bad\x00name\x1f.mp3",
			expected: "/music/badname.mp3",
		},
		{
			name:     "segment trim of spaces dots hyphens",
			input:    "/music/ .Artist. /- song -.mp3",
			expected: "/music/Artist/song.mp3",
		},
		{
			name:     "empty segments collapse",
			input:    "/music///deep//file.ogg",
			expected: "/music/deep/file.ogg",
		},
		{
			name:     "dot space option",
			input:    "/dl/Some.Show.S01E01.mkv",
			opts:     CleanOpts{DotSpace: true},
			expected: "/dl/Some Show S01E01.mkv",
		},
		{
			name:     "case insensitive lowers everything",
			input:    "/Music/ARTIST/Track.FLAC",
			opts:     CleanOpts{CaseInsensitive: true},
			expected: "/music/artist/track.flac",
		},
		{
			name:     "lowercase folders keeps filename case",
			input:    "/Music/ARTIST/Track.flac",
			opts:     CleanOpts{LowercaseFolders: true},
			expected: "/music/artist/Track.flac",
		},
		{
			name:     "unc root preserved",
			input:    `\\server\share\file.txt`,
			expected: `\\server\share\file.txt`,
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Clean(tc.input, tc.opts)
			if got != tc.expected {
				t.Errorf("Clean(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"/music/ .Artist. /- song -.mp3",
		"/music/bad\x00name\x1f.mp3",
		"/dl/" + strings.Repeat("x", 400) + ".mkv",
		"/music/caf\xc3\xa9/ok.flac",
		"/broken/\xff\xfe.mp3",
	}
	for _, input := range inputs {
		once := Clean(input, CleanOpts{})
		twice := Clean(once, CleanOpts{})
		if once != twice {
			t.Errorf("Clean not idempotent for %q:\n once:  %q\n twice: %q", input, once, twice)
		}
	}
}

func TestClean_Truncation(t *testing.T) {
	longStem := strings.Repeat("a", 300)
	got := Clean("/dl/"+longStem+".mkv", CleanOpts{MaxNameLen: 64})

	name := got[strings.LastIndex(got, "/")+1:]
	if len(name) > 64 {
		t.Errorf("name is %d bytes, budget was 64: %q", len(name), name)
	}
	if !strings.Contains(name, Ellipsis) {
		t.Errorf("expected mid-stem ellipsis in %q", name)
	}
	if !strings.HasSuffix(name, ".mkv") {
		t.Errorf("extension lost: %q", name)
	}
}

func TestClean_TruncationKeepsValidUTF8(t *testing.T) {
	longStem := strings.Repeat("ü", 200)
	got := Clean("/dl/"+longStem+".mkv", CleanOpts{MaxNameLen: 50})
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
}

func TestClean_InvalidUTF8Escaped(t *testing.T) {
	got := Clean("/music/bad\xffbyte.mp3", CleanOpts{})
	if !utf8.ValidString(got) {
		t.Fatalf("output still invalid UTF-8: %q", got)
	}
	if !strings.Contains(got, `\xff`) {
		t.Errorf("expected escaped byte to stay visible, got %q", got)
	}
}
