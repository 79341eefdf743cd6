package tags

import (
	"strings"

	"github.com/franz/media-librarian/internal/catalog"
)

// Priority lists: the first non-empty source key wins. Order matters and
// follows what the extractors actually emit most reliably.
var (
	titleKeys    = []string{"track", "title", "webpage_title", "fulltitle", "alt_title", "name"}
	uploaderKeys = []string{
		"channel_id", "uploader_url", "channel_url", "uploader", "channel",
		"uploader_id", "account.username", "author", "artist", "creator",
	}
	artistKeys      = []string{"artist", "albumartist", "album_artist", "composer", "performer"}
	descriptionKeys = []string{"description", "synopsis", "summary", "comment", "caption"}
	tagKeys         = []string{"tags", "categories", "genre", "genres", "keywords"}
	languageKeys    = []string{"language", "lang", "audio_lang", "locale"}
	viewCountKeys   = []string{"view_count", "play_count", "views"}
	favCountKeys    = []string{"favorite_count", "like_count", "likes"}
	durationKeys    = []string{"duration", "length", "duration_string"}
	liveStatusKeys  = []string{"live_status", "was_live", "is_live"}
	ageLimitKeys    = []string{"age_limit"}
	widthKeys       = []string{"width", "ImageWidth"}
	heightKeys      = []string{"height", "ImageHeight"}
	fpsKeys         = []string{"fps", "framerate", "VideoFrameRate"}
	sizeKeys        = []string{"filesize", "filesize_approx", "size"}
	webpathKeys     = []string{"webpage_url", "original_url", "url", "link"}
	typeKeys        = []string{"_type", "ext", "format", "mime_type"}
)

// knownKeys is the allowlist removed from the extras bag after extraction
var knownKeys = buildKnownKeys()

func buildKnownKeys() map[string]bool {
	known := map[string]bool{
		"upvote_count": true, "downvote_count": true, "average_rating": true,
		"score": true, "upvote_ratio": true,
		"release_timestamp": true, "timestamp": true, "upload_date": true,
		"release_date": true, "date": true, "created_at": true,
		"chapters": true, "subtitles": true, "thumbnails": true,
		"formats": true, "requested_downloads": true, "http_headers": true,
		"id": true, "album": true, "track_number": true, "disc_number": true,
		"playlist": true, "playlist_id": true, "playlist_title": true,
		"playlist_index": true, "extractor": true, "extractor_key": true,
		"epoch": true, "ie_key": true, "display_id": true, "channel_follower_count": true,
	}
	for _, list := range [][]string{
		titleKeys, uploaderKeys, artistKeys, descriptionKeys, tagKeys,
		languageKeys, viewCountKeys, favCountKeys, durationKeys,
		liveStatusKeys, ageLimitKeys, widthKeys, heightKeys, fpsKeys,
		sizeKeys, webpathKeys, typeKeys,
	} {
		for _, k := range list {
			known[k] = true
		}
	}
	return known
}

// ParseTags merges raw tag maps into a canonical media record. Single-value
// fields take the first non-empty source by priority; combining fields
// (artist, description, tags, language) concatenate distinct values.
// Unrecognized keys land in the extras bag for debug logging.
func ParseTags(maps ...RawTags) *catalog.Media {
	m := &catalog.Media{Corruption: -1}

	unpack := func(keys []string) string {
		for _, t := range maps {
			for _, k := range keys {
				if s := Stringify(t.Get(k)); s != "" {
					return s
				}
			}
		}
		return ""
	}
	combine := func(keys []string) string {
		var vals []any
		for _, t := range maps {
			for _, k := range keys {
				if v := t.Get(k); v != nil {
					vals = append(vals, v)
				}
			}
		}
		return Combine(vals...)
	}
	firstAny := func(keys []string) any {
		for _, t := range maps {
			for _, k := range keys {
				if v := t.Get(k); v != nil {
					if Stringify(v) != "" {
						return v
					}
				}
			}
		}
		return nil
	}

	m.Title = unpack(titleKeys)

	// Audio-style sources carry artists; those combine. Everything else
	// unpacks the uploader priority list.
	if artists := combine(artistKeys); artists != "" {
		m.Uploader = artists
	} else {
		m.Uploader = unpack(uploaderKeys)
	}

	m.Tags = Combine(combine(tagKeys), combine(descriptionKeys))
	m.Language = combine(languageKeys)
	m.ViewCount = SafeInt(firstAny(viewCountKeys))
	m.FavoriteCount = SafeInt(firstAny(favCountKeys))
	m.Duration = SafeInt(firstAny(durationKeys))
	m.LiveStatus = unpack(liveStatusKeys)
	m.AgeLimit = SafeInt(firstAny(ageLimitKeys))
	m.Width = SafeInt(firstAny(widthKeys))
	m.Height = SafeInt(firstAny(heightKeys))
	m.FPS = SafeFloat(firstAny(fpsKeys))
	m.Size = SafeInt(firstAny(sizeKeys))
	m.Webpath = unpack(webpathKeys)
	m.Type = strings.ToLower(unpack(typeKeys))

	m.Score = SafeFloat(firstAny([]string{"score"}))
	m.UpvoteRatio = upvoteRatio(maps)

	for _, t := range maps {
		if ts := TubeDate(t); ts > 0 {
			m.TimeUploaded = ts
			break
		}
	}

	m.Extras = leftovers(maps)
	return m
}

// upvoteRatio prefers the exact vote counts, falling back to the source's
// own average rating
func upvoteRatio(maps []RawTags) float64 {
	for _, t := range maps {
		if r := t.Get("upvote_ratio"); r != nil {
			if f := SafeFloat(r); f > 0 {
				return f
			}
		}
		up, down := t.Get("upvote_count"), t.Get("downvote_count")
		if up != nil && down != nil {
			u, d := SafeFloat(up), SafeFloat(down)
			if u+d > 0 {
				return u / (u + d)
			}
		}
		if avg := SafeFloat(t.Get("average_rating")); avg > 0 {
			return avg
		}
	}
	return 0
}

// leftovers collects keys outside the allowlist: dropped are _-prefixed
// keys, known keys and null values. What remains is a forward-compat
// signal worth logging.
func leftovers(maps []RawTags) map[string]string {
	extras := map[string]string{}
	for _, t := range maps {
		for k, v := range t {
			if strings.HasPrefix(k, "_") || knownKeys[k] || v == nil {
				continue
			}
			if s := Stringify(v); s != "" {
				if _, dup := extras[k]; !dup {
					extras[k] = s
				}
			}
		}
	}
	if len(extras) == 0 {
		return nil
	}
	return extras
}
