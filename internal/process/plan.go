package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/media-librarian/internal/pathutil"
	"github.com/franz/media-librarian/internal/util"
)

// Target suffixes by family. The pipeline converges everything onto these.
const (
	SuffixVideo = ".av1.mkv"
	SuffixAudio = ".mka"
	SuffixImage = ".avif"
	SuffixEbook = ".OEB"
)

// ClobberPolicy decides what happens when the planned target exists
type ClobberPolicy int

const (
	// ClobberNoReplace keeps the existing target and skips the source
	ClobberNoReplace ClobberPolicy = iota
	// ClobberDeleteDest removes the existing target before transcoding
	ClobberDeleteDest
	// ClobberDeleteSource treats the existing target as the result and
	// removes the source
	ClobberDeleteSource
	// ClobberRename picks a numbered variant of the target
	ClobberRename
)

// ParseClobber maps the CLI flag value
func ParseClobber(s string) (ClobberPolicy, error) {
	switch s {
	case "", "no-replace":
		return ClobberNoReplace, nil
	case "delete-dest":
		return ClobberDeleteDest, nil
	case "delete-source":
		return ClobberDeleteSource, nil
	case "rename":
		return ClobberRename, nil
	}
	return 0, fmt.Errorf("clobber policy %q: %w", s, util.ErrInvalidConfig)
}

// PlanTarget computes the output path for a source: cleaned stem plus the
// family suffix, with the name budget shrunk so the suffix always fits.
func PlanTarget(source, suffix string) string {
	dir := filepath.Dir(source)
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	cleaned := pathutil.Clean(stem, pathutil.CleanOpts{
		MaxNameLen: 255 - len(suffix),
	})
	return filepath.Join(dir, cleaned+suffix)
}

// resolveClobber applies the policy when target already exists. It returns
// the (possibly rewritten) target and whether the pipeline should proceed;
// proceed=false means the existing file already is the result.
func resolveClobber(source, target string, policy ClobberPolicy) (string, bool, error) {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target, true, nil
	}

	switch policy {
	case ClobberDeleteDest:
		if err := os.Remove(target); err != nil {
			return "", false, fmt.Errorf("failed to remove %s: %w", target, err)
		}
		return target, true, nil
	case ClobberDeleteSource:
		if source != target {
			if err := os.Remove(source); err != nil {
				return "", false, fmt.Errorf("failed to remove %s: %w", source, err)
			}
		}
		return target, false, nil
	case ClobberRename:
		for i := 1; i < 1000; i++ {
			ext := filepath.Ext(target)
			variant := fmt.Sprintf("%s.%d%s", strings.TrimSuffix(target, ext), i, ext)
			if _, err := os.Stat(variant); os.IsNotExist(err) {
				return variant, true, nil
			}
		}
		return "", false, fmt.Errorf("no free variant name for %s", target)
	default:
		util.DebugLog("Target %s exists, keeping source", target)
		return target, false, nil
	}
}
