package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

const exiftoolTimeout = 10 * time.Minute

// ExifTool reads metadata for many files in one batched invocation and
// returns raw tag maps keyed by path. Files exiftool could not decode come
// back with an empty map rather than failing the batch.
func ExifTool(ctx context.Context, paths []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	if !runner.Have("exiftool") {
		return nil, fmt.Errorf("exiftool: %w", util.ErrNotFound)
	}
	for _, p := range paths {
		out[p] = map[string]any{}
	}

	args := append([]string{"exiftool", "-j", "-G", "-api", "largefilesupport=1"}, paths...)
	res, err := runner.Run(ctx, runner.Cmd{
		Args:        args,
		Timeout:     exiftoolTimeout,
		DefaultKind: runner.KindUnsupported,
	})
	// exiftool exits 1 when any file in the batch fails but still emits
	// JSON for the rest
	if err != nil && (res == nil || res.Stdout == "") {
		return nil, fmt.Errorf("exiftool failed: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(res.Stdout), &records); err != nil {
		return nil, fmt.Errorf("failed to parse exiftool output: %w", err)
	}

	for _, rec := range records {
		src, _ := rec["SourceFile"].(string)
		if src == "" {
			continue
		}
		delete(rec, "SourceFile")
		out[src] = rec
	}

	for p, t := range out {
		if len(t) == 0 {
			util.DebugLog("No exiftool metadata for %s", p)
		}
	}
	return out, nil
}
