package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/probe"
	"github.com/franz/media-librarian/internal/util"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [file...]",
	Short: "Find duplicate rows or duplicate file content",
	Long: `Without arguments dedupe collapses catalog rows sharing a business
key. With file arguments it sample-hashes the files and prints groups with
identical content, confirmed by a full hash.`,
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().String("table", "media", "catalog table to dedupe")
	dedupeCmd.Flags().StringSlice("key", []string{"path"}, "business key columns")
	dedupeCmd.Flags().Bool("prefer-live", true, "keep live rows over tombstoned ones")
	dedupeCmd.Flags().Float64("gap", 0.15, "sample-hash spacing, fraction of size when < 1")

	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return dedupeFiles(cmd, args)
	}

	table, _ := cmd.Flags().GetString("table")
	keys, _ := cmd.Flags().GetStringSlice("key")
	preferLive, _ := cmd.Flags().GetBool("prefer-live")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.DedupeRows(table, "id", keys, catalog.DedupeOpts{PreferLive: preferLive})
	if err != nil {
		return err
	}
	util.SuccessLog("Removed %d duplicate rows from %s", deleted, table)
	return nil
}

// dedupeFiles compares file content, not catalog rows
func dedupeFiles(cmd *cobra.Command, paths []string) error {
	gap, _ := cmd.Flags().GetFloat64("gap")

	groups, err := probe.SampleCompare(paths, gap, 0)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		util.InfoLog("No duplicates among %d files", len(paths))
		return nil
	}

	for _, group := range groups {
		util.SuccessLog("Identical content:\n  %s", strings.Join(group, "\n  "))
	}
	util.InfoLog("%d duplicate groups", len(groups))
	return nil
}
