package main

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/extract"
	"github.com/franz/media-librarian/internal/report"
	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory...]",
	Short: "Scan directories into the catalog and extract metadata",
	Long: `Scan registers each directory as a playlist, diffs its tree against
the catalog and extracts metadata from new files. Without arguments every
local playlist whose refresh delay has elapsed is rescanned.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceP("profile", "p", []string{"audio", "video"}, "media profiles (audio, video, image, text, filesystem)")
	scanCmd.Flags().Bool("all-files", false, "ignore extension whitelists")
	scanCmd.Flags().StringSlice("exclude", nil, "skip paths containing these substrings")
	scanCmd.Flags().BoolP("force", "f", false, "rescan regardless of refresh delay; allow missing roots")
	scanCmd.Flags().Bool("no-extract", false, "diff only, skip metadata extraction")
	scanCmd.Flags().IntP("workers", "w", 0, "extraction workers (0 = auto)")
	scanCmd.Flags().Bool("ocr", false, "extract text from images and documents")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	started := time.Now()
	ctx := cmd.Context()

	profileNames, _ := cmd.Flags().GetStringSlice("profile")
	profiles, err := parseProfiles(profileNames)
	if err != nil {
		return err
	}
	allFiles, _ := cmd.Flags().GetBool("all-files")
	excludes, _ := cmd.Flags().GetStringSlice("exclude")
	force, _ := cmd.Flags().GetBool("force")
	noExtract, _ := cmd.Flags().GetBool("no-extract")
	workers, _ := cmd.Flags().GetInt("workers")
	ocr, _ := cmd.Flags().GetBool("ocr")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := newLogger()
	defer logger.Close()

	roots := args
	if len(roots) == 0 {
		roots, err = dueLocalRoots(store, force)
		if err != nil {
			return err
		}
		if len(roots) == 0 {
			util.InfoLog("No playlists due for refresh")
			return nil
		}
		util.InfoLog("Refreshing %d playlists", len(roots))
	}

	for _, root := range roots {
		if err := scanOneRoot(ctx, store, logger, root, scan.ScanOpts{
			Profiles:     profiles,
			ScanAllFiles: allFiles,
			Excludes:     excludes,
			Force:        force,
		}, extract.Opts{Profiles: profiles, Workers: workers, OCR: ocr}, noExtract); err != nil {
			if errors.Is(err, util.ErrOffline) {
				util.WarnLog("Skipping %s: %v", root, err)
				logger.LogSkip(report.EventScan, root, "offline")
				continue
			}
			return err
		}
	}

	summary, err := report.Gather(store, started)
	if err != nil {
		return err
	}
	summary.Print()
	return nil
}

func scanOneRoot(ctx context.Context, store *catalog.Store, logger *report.EventLogger,
	root string, opts scan.ScanOpts, exOpts extract.Opts, noExtract bool) error {

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	playlistID, err := store.PlaylistAdd(abs, &catalog.Playlist{
		ExtractorKey: catalog.ExtractorLocal,
		ExtractorConfig: catalog.CanonicalConfig(map[string]any{
			"profiles": opts.Profiles,
		}),
	}, true)
	if err != nil {
		return err
	}

	result, err := scan.ScanPath(ctx, store, abs, opts)
	if err != nil {
		return err
	}
	logger.LogScan(abs, result.Candidates, int64(len(result.New)), result.Undeleted, result.Deleted)

	if !noExtract && len(result.New) > 0 {
		exOpts.PlaylistID = playlistID
		exResult, err := extract.Extract(ctx, store, result.New, exOpts)
		if err != nil {
			return err
		}
		util.InfoLog("Extracted %d files (%d failed)", exResult.Processed, exResult.Failed)
	}

	// Productive roots get polled more often, stale ones back off
	if len(result.New) > 0 || result.Undeleted > 0 {
		err = store.UpdateMoreFrequently(abs)
	} else {
		err = store.UpdateLessFrequently(abs)
	}
	if err != nil {
		return err
	}
	return store.TouchPlaylist(playlistID)
}

// dueLocalRoots lists local playlist paths whose refresh delay elapsed
func dueLocalRoots(store *catalog.Store, force bool) ([]string, error) {
	playlists, err := store.PlaylistsToRefresh(force)
	if err != nil {
		return nil, err
	}
	var roots []string
	for _, p := range playlists {
		if p.ExtractorKey == catalog.ExtractorLocal {
			roots = append(roots, p.Path)
		}
	}
	return roots, nil
}
