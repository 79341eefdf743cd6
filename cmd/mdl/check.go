package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/probe"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
)

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Decode-check media files for corruption",
	Long: `Check decodes media, fully or in sampled segments, and records the
failing fraction as a corruption percentage. Without arguments candidates
come from the catalog, selected by --type.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("type", "t", "", "catalog type prefix when no files are given")
	checkCmd.Flags().IntP("limit", "n", 0, "catalog rows per run (0 = all)")
	checkCmd.Flags().StringP("mode", "m", "quick", "decode coverage (quick, audio, full)")
	checkCmd.Flags().Float64("chunk", 0, "segment length in seconds, fraction of duration when < 1")
	checkCmd.Flags().Float64("gap", 0, "spacing between segments, same convention")
	checkCmd.Flags().Duration("timeout", 0, "per-file timeout (0 = default)")
	checkCmd.Flags().Int64("max-ram", 0, "address-space limit in bytes (0 = none)")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	modeName, _ := cmd.Flags().GetString("mode")
	var mode probe.CheckMode
	switch modeName {
	case "quick":
		mode = probe.CheckQuick
	case "audio":
		mode = probe.CheckAudio
	case "full":
		mode = probe.CheckFull
	default:
		return fmt.Errorf("unknown check mode %q (want quick, audio or full)", modeName)
	}

	chunk, _ := cmd.Flags().GetFloat64("chunk")
	gap, _ := cmd.Flags().GetFloat64("gap")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxRAM, _ := cmd.Flags().GetInt64("max-ram")
	opts := probe.CheckOpts{Mode: mode, Chunk: chunk, Gap: gap, Timeout: timeout, MaxRAM: maxRAM}

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := newLogger()
	defer logger.Close()

	paths := args
	if len(paths) == 0 {
		mediaType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := store.LocalMedia(mediaType, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			paths = append(paths, row.Path)
		}
	}
	if len(paths) == 0 {
		util.InfoLog("Nothing to check")
		return nil
	}

	started := time.Now()
	var corrupt int
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		fraction, err := probe.MediaCheck(ctx, abs, opts)
		if err != nil {
			if runner.KindOf(err) == runner.KindEnvironment || util.IsFatalIOError(err) {
				return err
			}
			util.WarnLog("Check failed for %s: %v", abs, err)
			continue
		}

		percent := int64(fraction * 100)
		logger.LogCheck(abs, percent)
		if err := store.SetCorruption(abs, percent); err != nil {
			return err
		}
		if percent > 0 {
			util.WarnLog("%s: %d%% corrupt", abs, percent)
			corrupt++
		} else {
			util.DebugLog("%s: clean", abs)
		}
	}

	util.SuccessLog("Checked %d files in %s, %d corrupt",
		len(paths), time.Since(started).Round(time.Second), corrupt)
	return nil
}
