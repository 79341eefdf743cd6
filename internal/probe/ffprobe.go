package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

// FFProbeInfo is the parsed output of ffprobe for one file
type FFProbeInfo struct {
	Streams  []FFProbeStream  `json:"streams"`
	Format   *FFProbeFormat   `json:"format"`
	Chapters []FFProbeChapter `json:"chapters"`
}

// IntOrString tolerates ffprobe fields that arrive as either type
type IntOrString struct {
	Value int64
}

// UnmarshalJSON implements custom unmarshaling for IntOrString
func (i *IntOrString) UnmarshalJSON(data []byte) error {
	var intVal int64
	if err := json.Unmarshal(data, &intVal); err == nil {
		i.Value = intVal
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err != nil {
		return err
	}
	if strVal == "" || strVal == "N/A" {
		i.Value = 0
		return nil
	}
	parsed, err := strconv.ParseInt(strVal, 10, 64)
	if err != nil {
		i.Value = 0
		return nil
	}
	i.Value = parsed
	return nil
}

// FFProbeStream is one elementary stream
type FFProbeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int64             `json:"width"`
	Height       int64             `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	SampleRate   IntOrString       `json:"sample_rate"`
	Channels     int               `json:"channels"`
	NbFrames     IntOrString       `json:"nb_frames"`
	NbReadFrames IntOrString       `json:"nb_read_frames"`
	Duration     string            `json:"duration"`
	BitRate      string            `json:"bit_rate"`
	Tags         map[string]string `json:"tags"`
	Disposition  map[string]int    `json:"disposition"`
}

// FFProbeFormat is the container-level block
type FFProbeFormat struct {
	Filename       string            `json:"filename"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// FFProbeChapter is one chapter entry
type FFProbeChapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Language returns the stream's language tag, "" when untagged
func (s *FFProbeStream) Language() string {
	if s.Tags == nil {
		return ""
	}
	if l := s.Tags["language"]; l != "" {
		return l
	}
	return s.Tags["LANGUAGE"]
}

// IsAlbumArt reports whether a video stream is really an embedded cover
func (s *FFProbeStream) IsAlbumArt() bool {
	if s.CodecType != "video" {
		return false
	}
	if s.Disposition != nil && s.Disposition["attached_pic"] == 1 {
		return true
	}
	// Single-frame "video" streams in audio containers are covers too
	switch s.CodecName {
	case "mjpeg", "png", "bmp", "gif":
		return s.NbFrames.Value <= 1
	}
	return false
}

// StreamsByType splits streams into video/audio/subtitle/art buckets.
// Album art is excluded from the video bucket.
func (i *FFProbeInfo) StreamsByType() (video, audio, subs, art []FFProbeStream) {
	for _, s := range i.Streams {
		switch {
		case s.IsAlbumArt():
			art = append(art, s)
		case s.CodecType == "video":
			video = append(video, s)
		case s.CodecType == "audio":
			audio = append(audio, s)
		case s.CodecType == "subtitle":
			subs = append(subs, s)
		}
	}
	return video, audio, subs, art
}

// Duration returns the container duration in seconds, falling back to the
// longest stream when the format block lacks one.
func (i *FFProbeInfo) Duration() float64 {
	if i.Format != nil {
		if d, err := strconv.ParseFloat(i.Format.Duration, 64); err == nil && d > 0 {
			return d
		}
	}
	var best float64
	for _, s := range i.Streams {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > best {
			best = d
		}
	}
	return best
}

// FPS returns the frame rate of the first real video stream. Frame rates
// arrive as "num/den" rationals.
func (i *FFProbeInfo) FPS() float64 {
	video, _, _, _ := i.StreamsByType()
	for _, s := range video {
		if f := parseRational(s.AvgFrameRate); f > 0 {
			return f
		}
		if f := parseRational(s.RFrameRate); f > 0 {
			return f
		}
	}
	return 0
}

func parseRational(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

const ffprobeTimeout = 3 * time.Minute

// FFProbe runs ffprobe on a local file and parses the JSON output. When a
// stream reports no frame count in its headers the file is re-queried with
// -count_frames, which decodes the stream and is much slower.
func FFProbe(ctx context.Context, path string) (*FFProbeInfo, error) {
	info, err := runFFProbe(ctx, path, false)
	if err != nil {
		return nil, err
	}

	needCount := false
	for _, s := range info.Streams {
		if s.CodecType == "video" && s.NbFrames.Value == 0 && s.CodecName != "" {
			needCount = true
			break
		}
	}
	if needCount {
		util.DebugLog("Re-probing %s with -count_frames", path)
		counted, err := runFFProbe(ctx, path, true)
		if err == nil {
			for idx := range info.Streams {
				for _, cs := range counted.Streams {
					if cs.Index == info.Streams[idx].Index {
						info.Streams[idx].NbFrames = cs.NbFrames
						info.Streams[idx].NbReadFrames = cs.NbReadFrames
					}
				}
			}
		}
	}
	return info, nil
}

func runFFProbe(ctx context.Context, path string, countFrames bool) (*FFProbeInfo, error) {
	if !runner.Have("ffprobe") {
		return nil, fmt.Errorf("ffprobe: %w", util.ErrNotFound)
	}

	args := []string{"ffprobe", "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", "-show_chapters"}
	if countFrames {
		args = append(args, "-count_frames")
	}
	args = append(args, path)

	timeout := ffprobeTimeout
	if countFrames {
		timeout = 3 * ffprobeTimeout
	}
	res, err := runner.Run(ctx, runner.Cmd{
		Args:        args,
		Timeout:     timeout,
		DefaultKind: runner.KindUnplayable,
	})
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed on %s: %w", path, err)
	}

	var info FFProbeInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}
	if len(info.Streams) == 0 && info.Format == nil {
		return nil, fmt.Errorf("ffprobe on %s: %w", path, util.ErrUnsupported)
	}
	return &info, nil
}
