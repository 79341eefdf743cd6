package scan

import "testing"

func TestParseProfile(t *testing.T) {
	for _, valid := range []string{"audio", "video", "image", "text", "filesystem"} {
		p, ok := ParseProfile(valid)
		if !ok || string(p) != valid {
			t.Errorf("ParseProfile(%q) = %q, %v", valid, p, ok)
		}
	}
	if _, ok := ParseProfile("warez"); ok {
		t.Error("unknown profile accepted")
	}
	if _, ok := ParseProfile(""); ok {
		t.Error("empty profile accepted")
	}
}

func TestExtensions(t *testing.T) {
	exts := Extensions([]Profile{ProfileAudio, ProfileVideo})
	if !exts[".mp3"] || !exts[".mkv"] {
		t.Error("union missing expected extensions")
	}
	if exts[".jpg"] {
		t.Error("union includes extension from an unrequested profile")
	}

	if Extensions([]Profile{ProfileFilesystem}) != nil {
		t.Error("filesystem profile should disable the filter")
	}
	if Extensions([]Profile{ProfileAudio, ProfileFilesystem}) != nil {
		t.Error("filesystem profile in a set should disable the filter")
	}
	if Extensions(nil) != nil {
		t.Error("no profiles should disable the filter")
	}
}
