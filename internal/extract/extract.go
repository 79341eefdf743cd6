package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/probe"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/tags"
	"github.com/franz/media-librarian/internal/util"
)

// Opts controls an extraction run
type Opts struct {
	PlaylistID int64
	Profiles   []scan.Profile
	Workers    int
	OCR        bool // extract text from images and documents
}

// Result summarizes an extraction run
type Result struct {
	Processed int64
	Success   int64
	Failed    int64
}

// BatchSize returns how many candidates go into one persistence batch.
// Text extraction is CPU-bound so batches stay small; images and the rest
// are sized to keep batch inserts under the engine's parameter limit.
func BatchSize(profiles []scan.Profile) int {
	hasText, hasImage := false, false
	for _, p := range profiles {
		switch p {
		case scan.ProfileText:
			hasText = true
		case scan.ProfileImage:
			hasImage = true
		}
	}
	switch {
	case hasText:
		return runtime.NumCPU()
	case hasImage:
		return catalog.SQLiteParamLimit / 20
	default:
		return catalog.SQLiteParamLimit / 100
	}
}

// Extract probes every candidate path, normalizes its tags and persists
// the records batch by batch. Worker failures are recorded per item;
// environmental failures abort the run.
func Extract(ctx context.Context, store *catalog.Store, paths []string, opts Opts) (*Result, error) {
	if len(paths) == 0 {
		return &Result{}, nil
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	batchSize := BatchSize(opts.Profiles)

	util.InfoLog("Extracting %d files (%d workers, batches of %d)",
		len(paths), opts.Workers, batchSize)

	result := &Result{}
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionSetWriter(util.ProgressWriter()),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(200*time.Millisecond),
	)

	var envErr atomic.Value
	batchStart := 0
	for batchStart < len(paths) {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		end := batchStart + batchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[batchStart:end]
		batchStart = end

		records := make([]*catalog.Media, len(batch))
		var wg sync.WaitGroup
		work := make(chan int, len(batch))
		for idx := range batch {
			work <- idx
		}
		close(work)

		for w := 0; w < opts.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range work {
					if ctx.Err() != nil {
						return
					}
					m, err := extractOne(ctx, batch[idx], opts)
					atomic.AddInt64(&result.Processed, 1)
					bar.Add(1)
					if err != nil {
						if runner.KindOf(err) == runner.KindEnvironment || util.IsFatalIOError(err) {
							envErr.Store(err)
							return
						}
						util.WarnLog("Failed to extract %s: %v", batch[idx], err)
						atomic.AddInt64(&result.Failed, 1)
						records[idx] = &catalog.Media{
							Path:       batch[idx],
							Error:      firstLine(err.Error()),
							Corruption: -1,
						}
						continue
					}
					atomic.AddInt64(&result.Success, 1)
					records[idx] = m
				}
			}()
		}

		wg.Wait()
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err, ok := envErr.Load().(error); ok && err != nil {
			return result, err
		}

		// Drop nils, inject the playlist, persist in one upsert pass
		persist := records[:0]
		for _, m := range records {
			if m == nil {
				continue
			}
			m.PlaylistsID = opts.PlaylistID
			persist = append(persist, m)
		}
		if err := store.MediaAdd(persist...); err != nil {
			return result, fmt.Errorf("failed to persist batch: %w", err)
		}
	}

	bar.Finish()
	util.SuccessLog("Extraction complete: %d processed, %d ok, %d failed",
		result.Processed, result.Success, result.Failed)
	return result, nil
}

// extractOne probes a single file with the adapters its type calls for
// and folds everything into one canonical record
func extractOne(ctx context.Context, path string, opts Opts) (*catalog.Media, error) {
	size, mtime, err := util.GetFileMetadata(path)
	if err != nil {
		return nil, err
	}

	kind := fileKind(path)
	var rawMaps []tags.RawTags

	var info *probe.FFProbeInfo
	switch kind {
	case "video", "audio":
		info, err = probe.FFProbe(ctx, path)
		if err != nil {
			return nil, err
		}
		format := tags.FormatTags(info)
		if len(format) == 0 && kind == "audio" {
			if audio, err := probe.AudioTags(path); err == nil {
				format = tags.RawTags(audio)
			}
		}
		rawMaps = append(rawMaps, format)
	case "image":
		exif, err := probe.ExifTool(ctx, []string{path})
		if err != nil {
			return nil, err
		}
		rawMaps = append(rawMaps, tags.MungeImageTags(tags.RawTags(exif[path])))
	case "text":
		exif, err := probe.ExifTool(ctx, []string{path})
		if err == nil {
			rawMaps = append(rawMaps, tags.MungeImageTags(tags.RawTags(exif[path])))
		}
	}

	m := tags.ParseTags(rawMaps...)
	m.Path = path
	if m.Size == 0 {
		m.Size = size
	}
	m.Type = typeString(kind, path)
	if m.TimeUploaded == 0 && mtime > 0 {
		m.TimeUploaded = mtime
	}

	if info != nil {
		tags.CollectAV(m, info)
		if caps, err := probe.Subtitles(ctx, path); err == nil {
			m.Captions = append(m.Captions, caps...)
		}
	}

	if opts.OCR && (kind == "text" || kind == "image") {
		text, err := probe.TextExtract(ctx, path)
		if err != nil {
			util.DebugLog("Text extraction failed for %s: %v", path, err)
		} else if text = strings.TrimSpace(text); text != "" {
			m.Captions = append(m.Captions, catalog.Caption{Time: 0, Text: text})
		}
	}

	return m, nil
}

// fileKind buckets a path by extension into the probe families
func fileKind(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, p := range []scan.Profile{scan.ProfileVideo, scan.ProfileAudio, scan.ProfileImage, scan.ProfileText} {
		if scan.Extensions([]scan.Profile{p})[ext] {
			return string(p)
		}
	}
	return "file"
}

// typeString is the stored media type: family plus the concrete extension
func typeString(kind, path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return kind
	}
	return kind + "/" + ext
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
