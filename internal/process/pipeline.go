package process

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/probe"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

// Opts controls one processing run
type Opts struct {
	Encode           EncodeOpts
	Clobber          ClobberPolicy
	MaxRAM           int64
	Timeout          time.Duration
	DeleteUnplayable bool // unlink sources that cannot be decoded
	DeleteLarger     bool // unlink transcodes that grew
	KeepSource       bool // never unlink the source even when smaller
}

// Outcome reports what happened to one file
type Outcome struct {
	Source string
	Result string // the surviving path; == Source when nothing changed
	Action string // "transcoded", "skipped", "unchanged", "deleted"
	Saved  int64  // bytes saved, negative when the transcode grew
}

// codecs already at the archival target; such files pass through unchanged
var targetCodecs = map[string]bool{"av1": true, "opus": true, "avif": true}

var subtitleErrRe = regexp.MustCompile(`(?i)subtitle codec .* is not supported|Subtitle encoding currently only possible`)

var ffmpegRules = []runner.Rule{
	{Pattern: subtitleErrRe, Kind: runner.KindUnsupported},
	{Pattern: regexp.MustCompile(`(?i)decoder .* not found|unsupported codec|unknown format`), Kind: runner.KindUnsupported},
	{Pattern: regexp.MustCompile(`(?i)invalid data found|error while decoding|corrupt`), Kind: runner.KindUnplayable},
}

// Process runs the transcode pipeline on one local file and returns the
// surviving path. A nil error with Action "skipped"/"unchanged" means the
// file needed no work.
func Process(ctx context.Context, source string, opts Opts) (*Outcome, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 6 * time.Hour
	}

	family := familyOf(source)
	if family == "" {
		return &Outcome{Source: source, Result: source, Action: "skipped"}, nil
	}

	target := PlanTarget(source, familySuffix(family))
	target, proceed, err := resolveClobber(source, target, opts.Clobber)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return &Outcome{Source: source, Result: target, Action: "skipped"}, nil
	}

	switch family {
	case "image":
		return processImage(ctx, source, target, opts)
	case "ebook":
		return processEbook(ctx, source, target, opts)
	}

	info, err := probe.FFProbe(ctx, source)
	if err != nil {
		if runner.KindOf(err) == runner.KindUnplayable && opts.DeleteUnplayable {
			util.WarnLog("Deleting unplayable %s", source)
			if rmErr := os.Remove(source); rmErr != nil {
				return nil, rmErr
			}
			return &Outcome{Source: source, Action: "deleted"}, nil
		}
		return nil, err
	}

	// Animated-image extensions with zero real frames belong to the image
	// branch
	if family == "video" && isStillImage(source, info) {
		target = PlanTarget(source, SuffixImage)
		return processImage(ctx, source, target, opts)
	}

	if alreadyConverged(info, family) {
		return &Outcome{Source: source, Result: source, Action: "unchanged"}, nil
	}

	var args []string
	if family == "audio" {
		args = BuildAudioArgs(source, target, info)
	} else {
		args = BuildVideoArgs(source, target, info, opts.Encode)
	}

	err = runTranscode(ctx, args, opts)
	if err != nil && runner.KindOf(err) == runner.KindUnsupported && opts.Encode.CopySubs &&
		subtitleErrRe.MatchString(errStderr(err)) {
		// Retry once without subtitle copy
		util.InfoLog("Retrying %s without subtitles", source)
		retry := opts.Encode
		retry.CopySubs = false
		os.Remove(target)
		err = runTranscode(ctx, BuildVideoArgs(source, target, info, retry), opts)
	}
	if err != nil {
		os.Remove(target)
		switch runner.KindOf(err) {
		case runner.KindUnsupported:
			return &Outcome{Source: source, Result: source, Action: "skipped"}, nil
		case runner.KindUnplayable, runner.KindTimeout:
			if opts.DeleteUnplayable {
				util.WarnLog("Deleting unplayable %s", source)
				if rmErr := os.Remove(source); rmErr != nil {
					return nil, rmErr
				}
				return &Outcome{Source: source, Action: "deleted"}, nil
			}
			return nil, err
		default:
			return nil, err
		}
	}

	valid, err := validTranscode(ctx, source, target, info)
	if err != nil {
		return nil, err
	}
	if !valid {
		os.Remove(target)
		return &Outcome{Source: source, Result: source, Action: "skipped"}, nil
	}

	return pickWinner(source, target, opts)
}

func runTranscode(ctx context.Context, args []string, opts Opts) error {
	_, err := runner.Run(ctx, runner.Cmd{
		Args:        args,
		Timeout:     opts.Timeout,
		MaxRAM:      opts.MaxRAM,
		Classify:    ffmpegRules,
		DefaultKind: runner.KindUnplayable,
	})
	return err
}

// validTranscode gates the output: present, nonzero, openable, duration
// within 5% of the source unless the source container is duration-unreliable
func validTranscode(ctx context.Context, source, target string, srcInfo *probe.FFProbeInfo) (bool, error) {
	fi, err := os.Stat(target)
	if err != nil || fi.Size() == 0 {
		return false, nil
	}

	dstInfo, err := probe.FFProbe(ctx, target)
	if err != nil {
		if runner.KindOf(err) == runner.KindEnvironment {
			return false, err
		}
		return false, nil
	}

	srcDur, dstDur := srcInfo.Duration(), dstInfo.Duration()
	if srcDur <= 0 || unreliableDuration(source) {
		return true, nil
	}
	if math.Abs(dstDur-srcDur) > srcDur*0.05 {
		util.WarnLog("Duration drifted on %s: %.1fs -> %.1fs", target, srcDur, dstDur)
		return false, nil
	}
	return true, nil
}

// pickWinner keeps the smaller file and carries the source timestamps over
func pickWinner(source, target string, opts Opts) (*Outcome, error) {
	srcFi, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	dstFi, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	saved := srcFi.Size() - dstFi.Size()

	if saved < 0 && opts.DeleteLarger {
		os.Remove(target)
		return &Outcome{Source: source, Result: source, Action: "skipped", Saved: 0}, nil
	}

	if err := util.PreserveTimes(source, target); err != nil {
		util.DebugLog("Failed to preserve times on %s: %v", target, err)
	}

	if !opts.KeepSource && source != target {
		if err := os.Remove(source); err != nil {
			return nil, fmt.Errorf("failed to remove source %s: %w", source, err)
		}
	}
	util.InfoLog("Transcoded %s (saved %d bytes)", source, saved)
	return &Outcome{Source: source, Result: target, Action: "transcoded", Saved: saved}, nil
}

// processImage converts through ImageMagick to AVIF
func processImage(ctx context.Context, source, target string, opts Opts) (*Outcome, error) {
	if !runner.Have("magick") {
		return nil, &runner.Error{Kind: runner.KindEnvironment, Tool: "magick", Err: util.ErrNotFound}
	}
	_, err := runner.Run(ctx, runner.Cmd{
		Args:        []string{"magick", source, "-quality", "60", target},
		Timeout:     opts.Timeout,
		MaxRAM:      opts.MaxRAM,
		DefaultKind: runner.KindUnplayable,
	})
	if err != nil {
		os.Remove(target)
		if runner.KindOf(err) == runner.KindUnplayable && opts.DeleteUnplayable {
			if rmErr := os.Remove(source); rmErr != nil {
				return nil, rmErr
			}
			return &Outcome{Source: source, Action: "deleted"}, nil
		}
		if runner.KindOf(err) == runner.KindEnvironment {
			return nil, err
		}
		return &Outcome{Source: source, Result: source, Action: "skipped"}, nil
	}
	if fi, err := os.Stat(target); err != nil || fi.Size() == 0 {
		os.Remove(target)
		return &Outcome{Source: source, Result: source, Action: "skipped"}, nil
	}
	return pickWinner(source, target, opts)
}

// processEbook converts documents to OEB via Calibre, with an OCR pass
// first when the source is a PDF that does not already claim PDF/A
func processEbook(ctx context.Context, source, target string, opts Opts) (*Outcome, error) {
	if !runner.Have("ebook-convert") {
		return nil, &runner.Error{Kind: runner.KindEnvironment, Tool: "ebook-convert", Err: util.ErrNotFound}
	}

	input := source
	if strings.EqualFold(filepath.Ext(source), ".pdf") && runner.Have("ocrmypdf") && !claimsPDFA(ctx, source) {
		ocred := source + ".ocr.pdf"
		_, err := runner.Run(ctx, runner.Cmd{
			Args:        []string{"ocrmypdf", "--skip-text", source, ocred},
			Timeout:     opts.Timeout,
			MaxRAM:      opts.MaxRAM,
			DefaultKind: runner.KindUnsupported,
		})
		if err == nil {
			input = ocred
			defer os.Remove(ocred)
		} else {
			util.DebugLog("OCR pass failed for %s: %v", source, err)
		}
	}

	_, err := runner.Run(ctx, runner.Cmd{
		Args:        []string{"ebook-convert", input, target},
		Timeout:     opts.Timeout,
		MaxRAM:      opts.MaxRAM,
		DefaultKind: runner.KindUnsupported,
	})
	if err != nil {
		os.RemoveAll(target)
		if runner.KindOf(err) == runner.KindEnvironment {
			return nil, err
		}
		return &Outcome{Source: source, Result: source, Action: "skipped"}, nil
	}
	return pickWinner(source, target, opts)
}

// claimsPDFA asks exiftool whether the PDF declares PDF/A conformance;
// OCR on top of a PDF/A would only bloat it
func claimsPDFA(ctx context.Context, path string) bool {
	raw, err := probe.ExifTool(ctx, []string{path})
	if err != nil {
		return false
	}
	for k, v := range raw[path] {
		if strings.Contains(k, "Conformance") || strings.Contains(k, "PDFA") {
			if s, ok := v.(string); ok && s != "" {
				return true
			}
		}
	}
	return false
}

// isStillImage detects animation-capable extensions with no actual frames
func isStillImage(path string, info *probe.FFProbeInfo) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".gif" && ext != ".webp" && ext != ".apng" && ext != ".png" {
		return false
	}
	video, _, _, _ := info.StreamsByType()
	for _, s := range video {
		frames := s.NbReadFrames.Value
		if frames == 0 {
			frames = s.NbFrames.Value
		}
		if frames > 1 {
			return false
		}
	}
	return len(video) > 0 || info.Duration() == 0
}

// alreadyConverged reports whether every relevant stream is in a target
// codec already
func alreadyConverged(info *probe.FFProbeInfo, family string) bool {
	video, audio, _, _ := info.StreamsByType()
	if family == "audio" {
		if len(audio) == 0 {
			return false
		}
		for _, s := range audio {
			if !targetCodecs[strings.ToLower(s.CodecName)] {
				return false
			}
		}
		return true
	}
	if len(video) == 0 {
		return false
	}
	for _, s := range video {
		if !targetCodecs[strings.ToLower(s.CodecName)] {
			return false
		}
	}
	for _, s := range audio {
		if !targetCodecs[strings.ToLower(s.CodecName)] {
			return false
		}
	}
	return true
}

// unreliableDuration marks containers whose headers routinely lie
func unreliableDuration(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".m2ts", ".vob", ".flv", ".gif":
		return true
	}
	return false
}

var familySuffixes = map[string]string{
	"video": SuffixVideo,
	"audio": SuffixAudio,
	"image": SuffixImage,
	"ebook": SuffixEbook,
}

func familySuffix(f string) string { return familySuffixes[f] }

// familyOf buckets a source path for the pipeline; "" means not processable
func familyOf(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp4", ".mkv", ".webm", ".avi", ".mov", ".wmv", ".mpg", ".mpeg",
		".m4v", ".ts", ".m2ts", ".vob", ".3gp", ".flv", ".ogv", ".gif":
		return "video"
	case ".mp3", ".flac", ".ogg", ".oga", ".m4a", ".m4b", ".aac", ".wav",
		".aiff", ".ape", ".wv", ".wma", ".dsf":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".webp", ".heic", ".bmp", ".tif", ".tiff":
		return "image"
	case ".pdf", ".epub", ".mobi", ".azw", ".azw3", ".fb2", ".djvu":
		return "ebook"
	}
	return ""
}

// errStderr digs the captured stderr out of a classified runner error
func errStderr(err error) string {
	var re *runner.Error
	if errors.As(err, &re) {
		return re.Stderr
	}
	return ""
}
