package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/extract"
	"github.com/franz/media-librarian/internal/report"
	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/util"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory...]",
	Short: "Watch directories and rescan on change",
	Long: `Watch keeps an eye on the given directories (default: all local
playlists) and rescans a root shortly after files under it change. Events
are debounced so a large copy triggers one rescan, not thousands.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceP("profile", "p", []string{"audio", "video"}, "media profiles")
	watchCmd.Flags().Duration("debounce", 5*time.Second, "quiet period before a rescan")
	watchCmd.Flags().IntP("workers", "w", 0, "extraction workers (0 = auto)")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	profileNames, _ := cmd.Flags().GetStringSlice("profile")
	profiles, err := parseProfiles(profileNames)
	if err != nil {
		return err
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")
	workers, _ := cmd.Flags().GetInt("workers")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := newLogger()
	defer logger.Close()

	roots := args
	if len(roots) == 0 {
		playlists, err := store.PlaylistsToRefresh(true)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			if p.ExtractorKey == catalog.ExtractorLocal {
				roots = append(roots, p.Path)
			}
		}
	}
	if len(roots) == 0 {
		util.WarnLog("Nothing to watch: no directories given and no local playlists")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for i, root := range roots {
		if roots[i], err = filepath.Abs(root); err != nil {
			return err
		}
		if err := watchTree(watcher, roots[i]); err != nil {
			return err
		}
	}
	util.InfoLog("Watching %d roots", len(roots))

	// One timer per dirty root; firing order does not matter
	timers := map[string]*time.Timer{}
	dirty := make(chan string)

	markDirty := func(root string) {
		if t, ok := timers[root]; ok {
			t.Reset(debounce)
			return
		}
		timers[root] = time.AfterFunc(debounce, func() { dirty <- root })
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						util.WarnLog("Cannot watch %s: %v", event.Name, err)
					}
				}
			}
			if root := rootOf(roots, event.Name); root != "" {
				markDirty(root)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watcher error: %v", err)

		case root := <-dirty:
			delete(timers, root)
			util.InfoLog("Changes under %s, rescanning", root)
			if err := rescanRoot(ctx, store, logger, root, profiles, workers); err != nil {
				if util.IsFatalIOError(err) {
					return err
				}
				util.WarnLog("Rescan of %s failed: %v", root, err)
			}
		}
	}
}

// watchTree registers a directory and everything below it
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			util.WarnLog("Skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// rootOf maps an event path back to the watched root it lives under
func rootOf(roots []string, path string) string {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

func rescanRoot(ctx context.Context, store *catalog.Store, logger *report.EventLogger,
	root string, profiles []scan.Profile, workers int) error {
	return scanOneRoot(ctx, store, logger, root,
		scan.ScanOpts{Profiles: profiles},
		extract.Opts{Profiles: profiles, Workers: workers}, false)
}
