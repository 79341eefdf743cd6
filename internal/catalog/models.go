package catalog

import (
	"encoding/json"
	"sort"
)

// Extractor keys name the plugin that feeds a playlist
const (
	ExtractorLocal     = "Local"
	ExtractorWebFolder = "WebFolder"
	ExtractorComputer  = "Computer"
	ExtractorYoutube   = "Youtube"
	ExtractorGallery   = "Gallery"
)

// Playlist is a named ingestion source
type Playlist struct {
	ID               int64
	Path             string
	ExtractorKey     string
	ExtractorConfig  string // canonical JSON, sorted keys
	Uploader         string
	Title            string
	TimeCreated      int64
	TimeModified     int64
	TimeDeleted      int64
	HoursUpdateDelay int64 // refresh cadence, clamped to [1, 8760]
}

// Media is one addressable content item
type Media struct {
	ID          int64
	PlaylistsID int64 // 0 for single-file imports
	Path        string
	Webpath     string // origin URL once Path points at a local file

	Size     int64
	Duration int64
	Width    int64
	Height   int64
	FPS      float64

	VideoCodecs    string // comma-joined, first-seen order
	AudioCodecs    string
	SubtitleCodecs string
	VideoCount     int64
	AudioCount     int64
	SubtitleCount  int64

	Language      string
	Tags          string
	Title         string
	Uploader      string
	ViewCount     int64
	FavoriteCount int64
	Score         float64
	UpvoteRatio   float64
	LiveStatus    string
	AgeLimit      int64
	Type          string

	TimeCreated      int64
	TimeModified     int64
	TimeDeleted      int64
	TimeDownloaded   int64
	TimeUploaded     int64
	DownloadAttempts int64
	Error            string
	Corruption       int64 // percent 0-100, -1 = never checked

	// Captions carried by an ingestion entry; replace the stored set on
	// upsert. Not a column.
	Captions []Caption `json:"-"`

	// Extras holds source keys the normalizer did not recognize. Logged
	// for schema evolution, never persisted.
	Extras map[string]string `json:"-"`
}

// Live reports whether the row is not tombstoned
func (m *Media) Live() bool { return m.TimeDeleted == 0 }

// Caption is a time-coded text fragment attached to media
type Caption struct {
	ID      int64
	MediaID int64
	Time    int64 // seconds; 0 for bulk tag blobs
	Text    string
}

// History is a playback event
type History struct {
	ID         int64
	MediaID    int64
	TimePlayed int64
	Playhead   int64
	Done       bool
}

// BlockRule excludes media rows whose named column matches a LIKE pattern
type BlockRule struct {
	ID    int64
	Key   string
	Value string
}

// CanonicalConfig renders an option bag as JSON with sorted keys, so the
// (path, extractor_config) unique key is stable across runs regardless of
// option order.
func CanonicalConfig(opts map[string]any) string {
	if len(opts) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(opts))
	for _, k := range keys {
		ordered[k] = opts[k]
	}
	// encoding/json sorts map keys; the explicit sort above documents the
	// dependency rather than relying on it silently
	b, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ClampDelay bounds a refresh cadence to [1, 8760] hours
func ClampDelay(hours int64) int64 {
	if hours < 1 {
		return 1
	}
	if hours > 8760 {
		return 8760
	}
	return hours
}
