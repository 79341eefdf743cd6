package main

import (
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/process"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

var processCmd = &cobra.Command{
	Use:   "process [file...]",
	Short: "Transcode media into space-efficient archival formats",
	Long: `Process transcodes video to AV1, audio to Opus, images to AVIF and
documents to reflowable ebooks. Files already in a target format pass
through untouched. Without arguments candidates come from the catalog,
selected by --type.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringP("type", "t", "", "catalog type prefix when no files are given (video, audio, image, text)")
	processCmd.Flags().IntP("limit", "n", 0, "catalog rows per run (0 = all)")
	processCmd.Flags().String("clobber", "no-replace", "existing-target policy (no-replace, delete-dest, delete-source, rename)")
	processCmd.Flags().Int("preset", 0, "encoder preset override")
	processCmd.Flags().Int("crf", 0, "quality override")
	processCmd.Flags().Int("max-width", 0, "downscale ceiling override")
	processCmd.Flags().Int("max-height", 0, "downscale ceiling override")
	processCmd.Flags().Duration("timeout", 0, "per-file timeout (0 = default)")
	processCmd.Flags().Int64("max-ram", 0, "address-space limit per tool in bytes (0 = none)")
	processCmd.Flags().Bool("delete-unplayable", false, "unlink sources that cannot be decoded")
	processCmd.Flags().Bool("delete-larger", false, "unlink transcodes that grew")
	processCmd.Flags().Bool("keep-source", false, "never unlink the source")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	clobberName, _ := cmd.Flags().GetString("clobber")
	clobber, err := process.ParseClobber(clobberName)
	if err != nil {
		return err
	}

	encode := process.DefaultEncodeOpts()
	if v, _ := cmd.Flags().GetInt("preset"); v > 0 {
		encode.Preset = v
	}
	if v, _ := cmd.Flags().GetInt("crf"); v > 0 {
		encode.CRF = v
	}
	if v, _ := cmd.Flags().GetInt("max-width"); v > 0 {
		encode.MaxWidth = int64(v)
	}
	if v, _ := cmd.Flags().GetInt("max-height"); v > 0 {
		encode.MaxHeight = int64(v)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxRAM, _ := cmd.Flags().GetInt64("max-ram")
	deleteUnplayable, _ := cmd.Flags().GetBool("delete-unplayable")
	deleteLarger, _ := cmd.Flags().GetBool("delete-larger")
	keepSource, _ := cmd.Flags().GetBool("keep-source")

	opts := process.Opts{
		Encode:           encode,
		Clobber:          clobber,
		MaxRAM:           maxRAM,
		Timeout:          timeout,
		DeleteUnplayable: deleteUnplayable,
		DeleteLarger:     deleteLarger,
		KeepSource:       keepSource,
	}

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := newLogger()
	defer logger.Close()

	sources := args
	if len(sources) == 0 {
		mediaType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := store.LocalMedia(mediaType, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			sources = append(sources, row.Path)
		}
	}
	if len(sources) == 0 {
		util.InfoLog("Nothing to process")
		return nil
	}

	var transcoded, skipped, failed int
	var saved int64
	for _, source := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		abs, err := filepath.Abs(source)
		if err != nil {
			return err
		}

		started := time.Now()
		outcome, err := process.Process(ctx, abs, opts)
		if err != nil {
			if runner.KindOf(err) == runner.KindEnvironment || util.IsFatalIOError(err) {
				return err
			}
			util.WarnLog("Processing failed for %s: %v", abs, err)
			logger.LogProcess(abs, "", "failed", 0, time.Since(started), err)
			store.SetMediaError(abs, err.Error())
			failed++
			continue
		}

		logger.LogProcess(outcome.Source, outcome.Result, outcome.Action,
			outcome.Saved, time.Since(started), nil)
		switch outcome.Action {
		case "transcoded":
			transcoded++
			saved += outcome.Saved
		default:
			skipped++
		}

		if err := recordOutcome(store, outcome); err != nil {
			return err
		}
	}

	util.SuccessLog("Processed %d files: %d transcoded (%s saved), %d unchanged, %d failed",
		len(sources), transcoded, humanize.Bytes(uint64(max(saved, 0))), skipped, failed)
	return nil
}

// recordOutcome moves the catalog row along with the file: when the
// surviving path differs from the source, the old row is tombstoned and a
// fresh row inherits its playlist and origin.
func recordOutcome(store *catalog.Store, outcome *process.Outcome) error {
	if outcome.Result == outcome.Source {
		return nil
	}

	old, err := store.GetMediaByPath(outcome.Source)
	if err != nil {
		return err
	}

	if outcome.Action == "deleted" {
		_, err := store.MarkMediaDeleted([]string{outcome.Source})
		return err
	}

	fresh := &catalog.Media{Path: outcome.Result, Corruption: -1}
	if old != nil {
		fresh.PlaylistsID = old.PlaylistsID
		fresh.Webpath = old.Webpath
	}
	if err := store.MediaAdd(fresh); err != nil {
		return err
	}
	if old != nil {
		if _, err := store.MarkMediaDeleted([]string{outcome.Source}); err != nil {
			return err
		}
	}
	return nil
}
