package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/util"
)

// ScanOpts controls a filesystem scan
type ScanOpts struct {
	Profiles     []Profile
	ScanAllFiles bool     // ignore extension whitelists
	Excludes     []string // substring matches against the full path
	Force        bool     // skip the offline-mount guard, allow missing roots
}

// ScanResult summarizes one scan pass
type ScanResult struct {
	Candidates int
	New        []string // not yet in the catalog, longest path first
	Undeleted  int64
	Deleted    int64
}

// ScanPath diffs a directory tree against the catalog: files reappearing
// after deletion are undeleted, unknown files are reported for extraction,
// and catalog rows with no file behind them are soft-deleted. When the
// root yields no files at all but the catalog expects some, the scan
// assumes an unmounted disk and aborts rather than tombstoning everything.
func ScanPath(ctx context.Context, store *catalog.Store, root string, opts ScanOpts) (*ScanResult, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		if !opts.Force {
			return nil, fmt.Errorf("scan root %s: %w", root, util.ErrOffline)
		}
		n, err := store.MarkPlaylistsDeletedUnder(root)
		if err != nil {
			return nil, err
		}
		util.WarnLog("Root %s is gone, tombstoned %d playlists", root, n)
		return &ScanResult{}, nil
	}

	candidates, err := rglob(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	live, deleted, err := store.PathsUnder(root)
	if err != nil {
		return nil, err
	}

	liveSet := toSet(live)
	deletedSet := toSet(deleted)

	var undelete, fresh []string
	for _, p := range candidates {
		switch {
		case deletedSet[p]:
			undelete = append(undelete, p)
		case !liveSet[p]:
			fresh = append(fresh, p)
		}
	}

	candidateSet := toSet(candidates)
	var gone []string
	for _, p := range live {
		if !candidateSet[p] {
			gone = append(gone, p)
		}
	}

	// Offline-mount guard: an empty tree that would tombstone everything
	// the catalog knows is a missing disk, not a mass deletion
	if len(candidates) == 0 && len(gone) >= len(live) && len(live) > 0 && !opts.Force {
		return nil, fmt.Errorf("%s yielded no files but the catalog has %d: %w",
			root, len(live), util.ErrOffline)
	}

	result := &ScanResult{Candidates: len(candidates)}

	if result.Undeleted, err = store.MarkMediaUndeleted(undelete); err != nil {
		return nil, err
	}
	if result.Deleted, err = store.MarkMediaDeleted(gone); err != nil {
		return nil, err
	}

	// Longest paths first, so the most deeply nested (usually freshest)
	// content is extracted before its parents
	sort.Slice(fresh, func(i, j int) bool {
		if len(fresh[i]) != len(fresh[j]) {
			return len(fresh[i]) > len(fresh[j])
		}
		return fresh[i] < fresh[j]
	})
	result.New = fresh

	util.InfoLog("Scanned %s: %d candidates, %d new, %d undeleted, %d deleted",
		root, result.Candidates, len(result.New), result.Undeleted, result.Deleted)
	return result, nil
}

// rglob walks the tree collecting regular files that pass the extension
// whitelist and exclude filters
func rglob(ctx context.Context, root string, opts ScanOpts) ([]string, error) {
	var exts map[string]bool
	if !opts.ScanAllFiles {
		exts = Extensions(opts.Profiles)
	}

	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if util.IsFatalIOError(err) {
				return err
			}
			util.WarnLog("Skipping %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		for _, ex := range opts.Excludes {
			if ex != "" && strings.Contains(path, ex) {
				return nil
			}
		}
		if exts != nil && !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return candidates, nil
}

func toSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
