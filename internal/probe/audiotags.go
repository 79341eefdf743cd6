package probe

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// AudioTags reads embedded audio tags directly, as a fallback for files
// where ffprobe yields no usable tag block. Returns a raw tag map in the
// extractor vocabulary.
func AudioTags(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	track, _ := m.Track()
	raw := map[string]any{
		"title":        m.Title(),
		"artist":       m.Artist(),
		"albumartist":  m.AlbumArtist(),
		"album":        m.Album(),
		"composer":     m.Composer(),
		"genre":        m.Genre(),
		"track_number": track,
	}
	if y := m.Year(); y > 0 {
		raw["date"] = fmt.Sprintf("%d", y)
	}
	if c := m.Comment(); c != "" {
		raw["comment"] = c
	}

	for k, v := range raw {
		if s, ok := v.(string); ok && s == "" {
			delete(raw, k)
		}
	}
	return raw, nil
}
