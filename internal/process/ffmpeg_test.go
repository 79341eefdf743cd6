package process

import (
	"strings"
	"testing"

	"github.com/franz/media-librarian/internal/probe"
)

func videoInfo(w, h int64, fps string) *probe.FFProbeInfo {
	return &probe.FFProbeInfo{
		Format: &probe.FFProbeFormat{Duration: "100.0"},
		Streams: []probe.FFProbeStream{
			{CodecType: "video", CodecName: "h264", Width: w, Height: h,
				AvgFrameRate: fps, NbFrames: probe.IntOrString{Value: 2400}},
			{CodecType: "audio", CodecName: "aac", Channels: 2,
				BitRate: "128000", SampleRate: probe.IntOrString{Value: 48000}},
		},
	}
}

// flagValue returns the argument following the given flag, "" when absent
func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildVideoArgs_Scaling(t *testing.T) {
	opts := DefaultEncodeOpts()

	t.Run("oversized source downscales", func(t *testing.T) {
		args := BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(3840, 2160, "30/1"), opts)
		vf := flagValue(args, "-vf")
		if !strings.Contains(vf, "scale=w=1920:h=1080") {
			t.Errorf("vf = %q, want downscale", vf)
		}
	})

	t.Run("target-sized source passes through", func(t *testing.T) {
		args := BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(1920, 1080, "30/1"), opts)
		if vf := flagValue(args, "-vf"); vf != "" {
			t.Errorf("vf = %q, want no filters", vf)
		}
	})

	t.Run("slightly oversized source tolerated", func(t *testing.T) {
		args := BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(2048, 1080, "30/1"), opts)
		if vf := flagValue(args, "-vf"); strings.Contains(vf, "scale=") {
			t.Errorf("vf = %q, tolerance not applied", vf)
		}
	})

	t.Run("odd dimensions pad", func(t *testing.T) {
		args := BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(853, 480, "30/1"), opts)
		vf := flagValue(args, "-vf")
		if !strings.Contains(vf, "pad=") {
			t.Errorf("vf = %q, want pad filter", vf)
		}
	})

	t.Run("absurd frame rate recomputed", func(t *testing.T) {
		// 2400 frames over 100 s is really 24 fps
		args := BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(1280, 720, "90000/1"), opts)
		vf := flagValue(args, "-vf")
		if !strings.Contains(vf, "fps=24.000") {
			t.Errorf("vf = %q, want fps override", vf)
		}
	})
}

func TestBuildVideoArgs_Codec(t *testing.T) {
	opts := DefaultEncodeOpts()
	args := BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(1920, 1080, "30/1"), opts)

	if flagValue(args, "-c:v") != "libsvtav1" {
		t.Errorf("video codec = %q", flagValue(args, "-c:v"))
	}
	if flagValue(args, "-preset") != "6" || flagValue(args, "-crf") != "38" {
		t.Errorf("preset/crf = %q/%q", flagValue(args, "-preset"), flagValue(args, "-crf"))
	}
	if flagValue(args, "-c:s") != "copy" {
		t.Error("subtitles not copied by default")
	}
	if args[len(args)-1] != "out.av1.mkv" {
		t.Errorf("target not last: %v", args)
	}

	opts.CopySubs = false
	args = BuildVideoArgs("in.mp4", "out.av1.mkv", videoInfo(1920, 1080, "30/1"), opts)
	found := false
	for _, a := range args {
		if a == "-sn" {
			found = true
		}
	}
	if !found {
		t.Error("subtitle drop retry missing -sn")
	}
}

func TestAudioArgs(t *testing.T) {
	audioInfo := func(channels int, bitrate string, rate int64) *probe.FFProbeInfo {
		return &probe.FFProbeInfo{
			Streams: []probe.FFProbeStream{
				{CodecType: "audio", CodecName: "flac", Channels: channels,
					BitRate: bitrate, SampleRate: probe.IntOrString{Value: rate}},
			},
		}
	}

	t.Run("no audio", func(t *testing.T) {
		args := audioArgs(&probe.FFProbeInfo{})
		if len(args) != 1 || args[0] != "-an" {
			t.Errorf("args = %v, want -an", args)
		}
	})

	t.Run("high bitrate surround", func(t *testing.T) {
		args := audioArgs(audioInfo(6, "320000", 44100))
		if flagValue(args, "-c:a") != "libopus" {
			t.Errorf("codec = %q", flagValue(args, "-c:a"))
		}
		if flagValue(args, "-ac") != "2" {
			t.Errorf("channels = %q, want downmix to 2", flagValue(args, "-ac"))
		}
		if flagValue(args, "-b:a") != "128k" {
			t.Errorf("bitrate = %q", flagValue(args, "-b:a"))
		}
		if flagValue(args, "-ar") != "48000" {
			t.Errorf("rate = %q", flagValue(args, "-ar"))
		}
		if flagValue(args, "-frame_duration") != "" {
			t.Error("long frames applied to high-bitrate source")
		}
	})

	t.Run("low bitrate mono", func(t *testing.T) {
		args := audioArgs(audioInfo(1, "96000", 22050))
		if flagValue(args, "-ac") != "1" {
			t.Errorf("channels = %q", flagValue(args, "-ac"))
		}
		if flagValue(args, "-b:a") != "64k" || flagValue(args, "-frame_duration") != "40" {
			t.Errorf("low-bitrate ladder wrong: %v", args)
		}
		if flagValue(args, "-ar") != "24000" {
			t.Errorf("rate = %q, want 24000", flagValue(args, "-ar"))
		}
	})

	t.Run("telephone rate", func(t *testing.T) {
		args := audioArgs(audioInfo(1, "32000", 8000))
		if flagValue(args, "-ar") != "16000" {
			t.Errorf("rate = %q, want 16000", flagValue(args, "-ar"))
		}
	})

	t.Run("unreported rate defaults to 48k", func(t *testing.T) {
		args := audioArgs(audioInfo(2, "", 0))
		if flagValue(args, "-ar") != "48000" {
			t.Errorf("rate = %q, want 48000", flagValue(args, "-ar"))
		}
	})
}

func TestSilenceRe(t *testing.T) {
	stderr := "[silencedetect @ 0x5] silence_start: 12.345\n" +
		"[silencedetect @ 0x5] silence_end: 13.0 | silence_duration: 0.655\n" +
		"[silencedetect @ 0x5] silence_start: 250.5\n"

	matches := silenceRe.FindAllStringSubmatch(stderr, -1)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0][1] != "12.345" || matches[1][1] != "250.5" {
		t.Errorf("matches = %v", matches)
	}
}

func TestBuildSplitArgs(t *testing.T) {
	info := &probe.FFProbeInfo{
		Streams: []probe.FFProbeStream{
			{CodecType: "audio", Channels: 2, BitRate: "128000",
				SampleRate: probe.IntOrString{Value: 48000}},
		},
	}
	args := BuildSplitArgs("book.m4b", "book.%03d.mka", []float64{120.5, 300}, info)

	if flagValue(args, "-f") != "segment" {
		t.Errorf("muxer = %q", flagValue(args, "-f"))
	}
	if flagValue(args, "-segment_times") != "120.500,300.000" {
		t.Errorf("segment_times = %q", flagValue(args, "-segment_times"))
	}
	if flagValue(args, "-reset_timestamps") != "1" {
		t.Error("timestamps not reset per segment")
	}
	if args[len(args)-1] != "book.%03d.mka" {
		t.Errorf("pattern not last: %v", args)
	}
}
