package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

// sidecarExts are subtitle files recognized next to the media file,
// optionally with a language infix (movie.en.srt)
var sidecarExts = []string{".srt", ".vtt", ".ass", ".ssa", ".sub", ".lrc"}

const subtitleTimeout = 10 * time.Minute

// Subtitles collects time-coded text for a media file: sidecar subtitle
// files found by stem first, then the file's own subtitle streams extracted
// through ffmpeg. Styling is stripped; empty cues are dropped.
func Subtitles(ctx context.Context, path string) ([]catalog.Caption, error) {
	var captions []catalog.Caption

	for _, sidecar := range findSidecars(path) {
		data, err := os.ReadFile(sidecar)
		if err != nil {
			util.WarnLog("Failed to read sidecar %s: %v", sidecar, err)
			continue
		}
		captions = append(captions, parseCues(string(data))...)
	}
	if len(captions) > 0 {
		return captions, nil
	}

	internal, err := extractInternal(ctx, path)
	if err != nil {
		return nil, err
	}
	return internal, nil
}

// findSidecars returns existing subtitle files sharing the media file's
// stem, including language-infixed variants
func findSidecars(path string) []string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	dir := filepath.Dir(path)

	var found []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		ext := strings.ToLower(filepath.Ext(full))
		ok := false
		for _, se := range sidecarExts {
			if ext == se {
				ok = true
				break
			}
		}
		if !ok {
			continue
		}
		// movie.srt or movie.<lang>.srt
		rest := strings.TrimSuffix(full, ext)
		if rest == stem || strings.TrimSuffix(rest, filepath.Ext(rest)) == stem {
			found = append(found, full)
		}
	}
	return found
}

// extractInternal pulls the file's subtitle streams out with ffmpeg into a
// temp dir and parses them
func extractInternal(ctx context.Context, path string) ([]catalog.Caption, error) {
	info, err := FFProbe(ctx, path)
	if err != nil {
		return nil, err
	}
	_, _, subs, _ := info.StreamsByType()
	if len(subs) == 0 {
		return nil, nil
	}

	tmpDir, err := os.MkdirTemp("", "librarian-subs-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var captions []catalog.Caption
	for _, s := range subs {
		out := filepath.Join(tmpDir, fmt.Sprintf("stream%d.srt", s.Index))
		_, err := runner.Run(ctx, runner.Cmd{
			Args: []string{"ffmpeg", "-hide_banner", "-v", "error",
				"-i", path, "-map", fmt.Sprintf("0:%d", s.Index), out},
			Timeout:     subtitleTimeout,
			DefaultKind: runner.KindUnsupported,
		})
		if err != nil {
			// Bitmap subtitles cannot convert to text; skip the stream
			util.DebugLog("Subtitle stream %d of %s not extractable: %v", s.Index, path, err)
			continue
		}
		data, err := os.ReadFile(out)
		if err != nil {
			continue
		}
		captions = append(captions, parseCues(string(data))...)
	}
	return captions, nil
}

var (
	srtTimeRe = regexp.MustCompile(`(\d+):(\d+):(\d+)[,.](\d+)\s*-->`)
	lrcTimeRe = regexp.MustCompile(`^\[(\d+):(\d+)(?:\.\d+)?\](.*)`)
	cueTagRe  = regexp.MustCompile(`<[^>]+>|\{\\[^}]*\}`)
)

// parseCues handles SRT/VTT cue blocks and LRC lines. Good enough for
// indexing; not a renderer.
func parseCues(data string) []catalog.Caption {
	var captions []catalog.Caption
	data = strings.ReplaceAll(data, "\r\n", "\n")

	var at int64 = -1
	var text []string
	flush := func() {
		if at >= 0 && len(text) > 0 {
			joined := strings.TrimSpace(cueTagRe.ReplaceAllString(strings.Join(text, " "), ""))
			if joined != "" {
				captions = append(captions, catalog.Caption{Time: at, Text: joined})
			}
		}
		at, text = -1, nil
	}

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)

		if m := lrcTimeRe.FindStringSubmatch(line); m != nil {
			flush()
			min, _ := strconv.ParseInt(m[1], 10, 64)
			sec, _ := strconv.ParseInt(m[2], 10, 64)
			if t := strings.TrimSpace(m[3]); t != "" {
				captions = append(captions, catalog.Caption{Time: min*60 + sec, Text: t})
			}
			continue
		}

		if m := srtTimeRe.FindStringSubmatch(line); m != nil {
			flush()
			h, _ := strconv.ParseInt(m[1], 10, 64)
			min, _ := strconv.ParseInt(m[2], 10, 64)
			sec, _ := strconv.ParseInt(m[3], 10, 64)
			at = h*3600 + min*60 + sec
			continue
		}

		if line == "" {
			flush()
			continue
		}
		// Sequence numbers and WEBVTT headers are not cue text
		if at < 0 {
			continue
		}
		text = append(text, line)
	}
	flush()
	return captions
}
