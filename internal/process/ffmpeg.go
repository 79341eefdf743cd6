package process

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/probe"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

// EncodeOpts parameterizes ffmpeg argument construction
type EncodeOpts struct {
	Preset          int // libsvtav1 preset
	CRF             int
	MaxWidth        int64
	MaxHeight       int64
	CopySubs        bool    // -c:s copy; dropped on the unsupported-subtitle retry
	MinSplitSegment float64 // seconds; minimum spacing between audio split points
}

// DefaultEncodeOpts matches the library's archival settings
func DefaultEncodeOpts() EncodeOpts {
	return EncodeOpts{
		Preset:          6,
		CRF:             38,
		MaxWidth:        1920,
		MaxHeight:       1080,
		CopySubs:        true,
		MinSplitSegment: 120,
	}
}

// scaleTolerance lets slightly oversized sources through unscaled; a
// handful of extra rows is not worth a resample generation
const scaleTolerance = 1.1

// BuildVideoArgs constructs the ffmpeg invocation for the A/V branch,
// driven entirely by the source's probe results.
func BuildVideoArgs(source, target string, info *probe.FFProbeInfo, opts EncodeOpts) []string {
	args := []string{"ffmpeg", "-hide_banner", "-v", "error", "-y", "-i", source}

	args = append(args,
		"-c:v", "libsvtav1",
		"-preset", strconv.Itoa(opts.Preset),
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", "yuv420p10le",
		"-svtav1-params", "tune=0:enable-overlays=1",
	)

	if vf := videoFilters(info, opts); vf != "" {
		args = append(args, "-vf", vf)
	}

	args = append(args, audioArgs(info)...)

	if opts.CopySubs {
		args = append(args, "-c:s", "copy")
	} else {
		args = append(args, "-sn")
	}

	// Chapters and global metadata carry over
	args = append(args, "-map_metadata", "0", "-map_chapters", "0")
	args = append(args, target)
	return args
}

// BuildAudioArgs constructs the audio-only invocation (.mka target)
func BuildAudioArgs(source, target string, info *probe.FFProbeInfo) []string {
	args := []string{"ffmpeg", "-hide_banner", "-v", "error", "-y", "-i", source, "-vn"}
	args = append(args, audioArgs(info)...)
	args = append(args, "-map_metadata", "0", "-map_chapters", "0", target)
	return args
}

// videoFilters picks fps override, downscale or even-dimension padding
func videoFilters(info *probe.FFProbeInfo, opts EncodeOpts) string {
	var filters []string

	// Streams with broken timebases report absurd frame rates; recompute
	// the real rate from frames over duration
	if fps := info.FPS(); fps > 240 {
		if real := realFPS(info); real > 0 {
			filters = append(filters, fmt.Sprintf("fps=%.3f", real))
		}
	}

	video, _, _, _ := info.StreamsByType()
	var w, h int64
	for _, s := range video {
		if s.Width > 0 && s.Height > 0 {
			w, h = s.Width, s.Height
			break
		}
	}

	switch {
	case w == 0 || h == 0:
	case float64(w) > float64(opts.MaxWidth)*scaleTolerance || float64(h) > float64(opts.MaxHeight)*scaleTolerance:
		filters = append(filters, fmt.Sprintf(
			"scale=w=%d:h=%d:force_original_aspect_ratio=decrease:force_divisible_by=2",
			opts.MaxWidth, opts.MaxHeight))
	case w%2 == 1 || h%2 == 1:
		// YUV420 needs even dimensions
		filters = append(filters, "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	}

	return strings.Join(filters, ",")
}

// realFPS recomputes the frame rate from counted frames over duration
func realFPS(info *probe.FFProbeInfo) float64 {
	duration := info.Duration()
	if duration <= 0 {
		return 0
	}
	video, _, _, _ := info.StreamsByType()
	for _, s := range video {
		frames := s.NbReadFrames.Value
		if frames == 0 {
			frames = s.NbFrames.Value
		}
		if frames > 0 {
			return float64(frames) / duration
		}
	}
	return 0
}

// audioArgs builds the opus ladder from the source's audio properties
func audioArgs(info *probe.FFProbeInfo) []string {
	_, audio, _, _ := info.StreamsByType()
	if len(audio) == 0 {
		return []string{"-an"}
	}
	src := audio[0]

	channels := src.Channels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		channels = 1
	}

	srcBitrate, _ := strconv.Atoi(src.BitRate)
	args := []string{"-c:a", "libopus", "-ac", strconv.Itoa(channels)}
	if srcBitrate >= 256_000 {
		args = append(args, "-b:a", "128k")
	} else {
		args = append(args, "-b:a", "64k", "-frame_duration", "40")
	}

	// Opus only speaks a few rates; map down by source thresholds
	switch rate := src.SampleRate.Value; {
	case rate >= 44100 || rate == 0:
		args = append(args, "-ar", "48000")
	case rate >= 22050:
		args = append(args, "-ar", "24000")
	default:
		args = append(args, "-ar", "16000")
	}

	args = append(args, "-af", "loudnorm=I=-16:LRA=11:TP=-1.5")
	return args
}

var silenceRe = regexp.MustCompile(`silence_start: ([\d.]+)`)

// DetectSplitPoints runs a silence-detect pass and returns split offsets
// whose spacing meets the minimum segment length. Empty means single-file
// output.
func DetectSplitPoints(ctx context.Context, source string, minSegment float64) ([]float64, error) {
	res, err := runner.Run(ctx, runner.Cmd{
		Args: []string{"ffmpeg", "-hide_banner", "-i", source,
			"-af", "silencedetect=-55dB:d=0.3", "-f", "null", "-"},
		Timeout:     30 * time.Minute,
		DefaultKind: runner.KindUnplayable,
	})
	if err != nil {
		return nil, err
	}

	var points []float64
	last := 0.0
	for _, m := range silenceRe.FindAllStringSubmatch(res.Stderr, -1) {
		p, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if p-last >= minSegment {
			points = append(points, p)
			last = p
		}
	}
	if len(points) == 0 {
		util.DebugLog("No usable split points in %s", source)
	}
	return points, nil
}

// BuildSplitArgs emits a segmented-output invocation at the given points
func BuildSplitArgs(source, targetPattern string, points []float64, info *probe.FFProbeInfo) []string {
	times := make([]string, len(points))
	for i, p := range points {
		times[i] = strconv.FormatFloat(p, 'f', 3, 64)
	}

	args := []string{"ffmpeg", "-hide_banner", "-v", "error", "-y", "-i", source, "-vn"}
	args = append(args, audioArgs(info)...)
	args = append(args,
		"-f", "segment",
		"-segment_times", strings.Join(times, ","),
		"-reset_timestamps", "1",
		targetPattern,
	)
	return args
}
