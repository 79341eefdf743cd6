package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/tags"
	"github.com/franz/media-librarian/internal/util"
)

const extractorTimeout = 4 * time.Hour

var notFoundRe = regexp.MustCompile(`(?i)HTTP Error 404|404: Not Found|video unavailable|This post has been deleted`)

var extractorRules = []runner.Rule{
	{Pattern: notFoundRe, Kind: runner.KindUnsupported},
	{Pattern: regexp.MustCompile(`(?i)Unsupported URL|No video formats|no suitable extractor`), Kind: runner.KindUnsupported},
}

// fetched is one downloaded file plus its normalized metadata
type fetched struct {
	LocalPath string
	Info      *catalog.Media
	NotFound  bool
}

// tubeFetch downloads through yt-dlp, capturing the info dict it prints
// and feeding it through the tag normalizer
func tubeFetch(ctx context.Context, rawURL, destDir string) (*fetched, error) {
	if !runner.Have("yt-dlp") {
		return nil, &runner.Error{Kind: runner.KindEnvironment, Tool: "yt-dlp", Err: util.ErrNotFound}
	}

	template := filepath.Join(destDir, "%(uploader,channel|unknown)s", "%(title)s.%(ext)s")
	res, err := runner.Run(ctx, runner.Cmd{
		Args: []string{"yt-dlp", "--no-progress", "--no-playlist",
			"--dump-single-json", "--no-simulate",
			"-o", template, rawURL},
		Timeout:     extractorTimeout,
		Classify:    extractorRules,
		DefaultKind: runner.KindUnplayable,
	})
	if err != nil {
		if stderrMatches(err, notFoundRe) {
			return &fetched{NotFound: true}, nil
		}
		return nil, err
	}

	var raw tags.RawTags
	if jErr := json.Unmarshal([]byte(res.Stdout), &raw); jErr != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", jErr)
	}

	info := tags.ParseTags(raw)
	return &fetched{LocalPath: tubeLocalPath(raw), Info: info}, nil
}

// tubeLocalPath digs the final file path out of the info dict
func tubeLocalPath(raw tags.RawTags) string {
	for _, key := range []string{"filepath", "filename", "_filename"} {
		if p := tags.Stringify(raw.Get(key)); p != "" {
			return p
		}
	}
	if reqs, ok := raw["requested_downloads"].([]any); ok && len(reqs) > 0 {
		if m, ok := reqs[0].(map[string]any); ok {
			for _, key := range []string{"filepath", "filename"} {
				if p := tags.Stringify(m[key]); p != "" {
					return p
				}
			}
		}
	}
	return ""
}

// galleryFetch downloads through gallery-dl; downloaded paths arrive one
// per stdout line
func galleryFetch(ctx context.Context, rawURL, destDir string) (*fetched, error) {
	if !runner.Have("gallery-dl") {
		return nil, &runner.Error{Kind: runner.KindEnvironment, Tool: "gallery-dl", Err: util.ErrNotFound}
	}

	res, err := runner.Run(ctx, runner.Cmd{
		Args:        []string{"gallery-dl", "-D", destDir, rawURL},
		Timeout:     extractorTimeout,
		Classify:    extractorRules,
		DefaultKind: runner.KindUnplayable,
	})
	if err != nil {
		if stderrMatches(err, notFoundRe) {
			return &fetched{NotFound: true}, nil
		}
		return nil, err
	}

	var last string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		if line != "" {
			last = line
		}
	}
	return &fetched{LocalPath: last, Info: &catalog.Media{Corruption: -1}}, nil
}

// supports asks the extractor whether it recognizes the URL without
// downloading anything
func supports(ctx context.Context, tool, rawURL string) bool {
	if !runner.Have(tool) {
		return false
	}
	_, err := runner.Run(ctx, runner.Cmd{
		Args:        []string{tool, "--simulate", "--quiet", rawURL},
		Timeout:     2 * time.Minute,
		Classify:    extractorRules,
		DefaultKind: runner.KindUnsupported,
	})
	return err == nil
}

func stderrMatches(err error, re *regexp.Regexp) bool {
	var rerr *runner.Error
	if errors.As(err, &rerr) {
		return re.MatchString(rerr.Stderr)
	}
	return false
}
