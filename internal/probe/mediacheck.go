package probe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

// CheckMode selects how much of the file a media check decodes
type CheckMode int

const (
	// CheckQuick decodes a handful of spread-out segments
	CheckQuick CheckMode = iota
	// CheckAudio decodes only the audio streams, segmented
	CheckAudio
	// CheckFull decodes the entire file in one pass
	CheckFull
)

// CheckOpts controls MediaCheck
type CheckOpts struct {
	Mode    CheckMode
	Chunk   float64 // segment length in seconds, or fraction of duration when < 1
	Gap     float64 // spacing between segments, same convention
	Timeout time.Duration
	MaxRAM  int64
}

// CalculateSegments returns decode start offsets for a sampled check. The
// first segment starts at 0 and the last ends exactly at the duration;
// chunk and gap below 1 are fractions of the duration.
func CalculateSegments(duration, chunk, gap float64) []float64 {
	if duration <= 0 {
		return nil
	}
	if chunk < 1 {
		chunk = duration * chunk
	}
	if gap < 1 {
		gap = duration * gap
	}
	if chunk <= 0 || chunk >= duration {
		return []float64{0}
	}

	var segments []float64
	for pos := 0.0; pos+chunk <= duration-chunk; pos += chunk + gap {
		segments = append(segments, pos)
	}
	if len(segments) == 0 {
		segments = append(segments, 0)
	}

	// Close with a tail segment unless it would overlap the previous one
	last := duration - chunk
	if prev := segments[len(segments)-1]; last >= prev+chunk {
		segments = append(segments, last)
	}
	return segments
}

// MediaCheck decodes the file (or samples of it) through ffmpeg's null
// muxer and reports the fraction of segments that failed, 0 meaning clean
// and 1 meaning nothing decoded.
func MediaCheck(ctx context.Context, path string, opts CheckOpts) (float64, error) {
	if !runner.Have("ffmpeg") {
		return 0, fmt.Errorf("ffmpeg: %w", util.ErrNotFound)
	}

	info, err := FFProbe(ctx, path)
	if err != nil {
		// A file ffprobe cannot open is fully corrupt
		if runner.KindOf(err) == runner.KindEnvironment {
			return 0, err
		}
		return 1, nil
	}
	duration := info.Duration()

	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Minute
	}
	if opts.Chunk == 0 {
		opts.Chunk = 0.05
	}
	if opts.Gap == 0 {
		opts.Gap = 0.15
	}

	var segments []float64
	if opts.Mode == CheckFull || duration <= 0 {
		segments = []float64{0}
	} else {
		segments = CalculateSegments(duration, opts.Chunk, opts.Gap)
	}

	chunk := opts.Chunk
	if chunk < 1 {
		chunk = duration * chunk
	}

	failed := 0
	for _, start := range segments {
		args := []string{"ffmpeg", "-hide_banner", "-v", "error", "-xerror"}
		if start > 0 {
			args = append(args, "-ss", strconv.FormatFloat(start, 'f', 2, 64))
		}
		args = append(args, "-i", path)
		if opts.Mode != CheckFull && duration > 0 {
			args = append(args, "-t", strconv.FormatFloat(chunk, 'f', 2, 64))
		}
		if opts.Mode == CheckAudio {
			args = append(args, "-map", "0:a?")
		}
		args = append(args, "-f", "null", "-")

		_, err := runner.Run(ctx, runner.Cmd{
			Args:        args,
			Timeout:     opts.Timeout,
			MaxRAM:      opts.MaxRAM,
			DefaultKind: runner.KindUnplayable,
		})
		if err != nil {
			if kind := runner.KindOf(err); kind == runner.KindEnvironment {
				return 0, err
			}
			util.DebugLog("Decode failed at %.1fs in %s", start, path)
			failed++
		}
	}

	return float64(failed) / float64(len(segments)), nil
}
