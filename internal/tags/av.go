package tags

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/probe"
)

// genericChapterRe matches auto-generated chapter titles that carry no
// information ("Chapter 1", "Chapter 01", "chapter 12")
var genericChapterRe = regexp.MustCompile(`(?i)^chapter\s+\d+$`)

// CollectAV folds ffprobe stream and chapter data into the media record:
// dimensions and frame rate from the first real video stream, codec lists
// in first-seen order, stream counts with album art excluded, languages
// combined across all streams, chapters as time-coded captions.
func CollectAV(m *catalog.Media, info *probe.FFProbeInfo) {
	if info == nil {
		return
	}

	video, audio, subs, _ := info.StreamsByType()

	if d := info.Duration(); d > 0 {
		m.Duration = int64(d + 0.5)
	}
	if fps := info.FPS(); fps > 0 {
		m.FPS = fps
	}
	for _, s := range video {
		if s.Width > 0 && s.Height > 0 {
			m.Width, m.Height = s.Width, s.Height
			break
		}
	}

	m.VideoCodecs = codecList(video)
	m.AudioCodecs = codecList(audio)
	m.SubtitleCodecs = codecList(subs)
	m.VideoCount = int64(len(video))
	m.AudioCount = int64(len(audio))
	m.SubtitleCount = int64(len(subs))

	var langs []any
	for _, s := range info.Streams {
		langs = append(langs, s.Language())
	}
	m.Language = Combine(append([]any{m.Language}, langs...)...)

	if info.Format != nil && m.Size == 0 {
		m.Size = SafeInt(info.Format.Size)
	}

	m.Captions = append(m.Captions, chapterCaptions(info.Chapters)...)
}

// codecList joins distinct codec names in first-seen order
func codecList(streams []probe.FFProbeStream) string {
	seen := map[string]bool{}
	var names []string
	for _, s := range streams {
		name := strings.ToLower(s.CodecName)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

// chapterCaptions converts named chapters into captions at their start
// time. Unnamed and auto-numbered chapters are skipped.
func chapterCaptions(chapters []probe.FFProbeChapter) []catalog.Caption {
	var caps []catalog.Caption
	for _, ch := range chapters {
		title := strings.TrimSpace(ch.Tags["title"])
		if title == "" || genericChapterRe.MatchString(title) {
			continue
		}
		start, err := strconv.ParseFloat(ch.StartTime, 64)
		if err != nil {
			start = 0
		}
		caps = append(caps, catalog.Caption{Time: int64(start), Text: title})
	}
	return caps
}

// FormatTags converts ffprobe's container-level tag block to a raw tag map
// suitable for ParseTags
func FormatTags(info *probe.FFProbeInfo) RawTags {
	t := RawTags{}
	if info == nil || info.Format == nil {
		return t
	}
	for k, v := range info.Format.Tags {
		t[strings.ToLower(k)] = v
	}
	return t
}
