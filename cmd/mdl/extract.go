package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/extract"
	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/util"
)

var extractCmd = &cobra.Command{
	Use:   "extract <path>...",
	Short: "Extract metadata from files or directories",
	Long: `Extract probes the given files (directories are walked) and writes
their metadata into the catalog. Scan does this automatically for new
files; extract re-runs it on demand.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringSliceP("profile", "p", []string{"audio", "video"}, "media profiles")
	extractCmd.Flags().IntP("workers", "w", 0, "extraction workers (0 = auto)")
	extractCmd.Flags().Bool("ocr", false, "extract text from images and documents")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	profileNames, _ := cmd.Flags().GetStringSlice("profile")
	profiles, err := parseProfiles(profileNames)
	if err != nil {
		return err
	}
	workers, _ := cmd.Flags().GetInt("workers")
	ocr, _ := cmd.Flags().GetBool("ocr")

	paths, err := collectFiles(args, profiles)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		util.InfoLog("Nothing to extract")
		return nil
	}

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := extract.Extract(cmd.Context(), store, paths, extract.Opts{
		Profiles: profiles,
		Workers:  workers,
		OCR:      ocr,
	})
	if err != nil {
		return err
	}
	util.SuccessLog("Extracted %d files, %d failed", result.Processed, result.Failed)
	return nil
}

// collectFiles expands directories into matching files and absolutizes
// everything
func collectFiles(args []string, profiles []scan.Profile) ([]string, error) {
	exts := scan.Extensions(profiles)
	var paths []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("cannot stat %s: %w", arg, err)
		}
		if !st.IsDir() {
			paths = append(paths, abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !d.Type().IsRegular() {
				return err
			}
			if exts == nil || exts[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
