package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/util"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source.db>...",
	Short: "Merge other catalog files into this one",
	Long: `Merge copies rows from the given catalog files into the configured
one, parent tables first so foreign keys resolve. Replace mode overwrites
conflicting rows; upsert mode fills only columns the destination left
empty.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().String("mode", "replace", "conflict policy (replace, ignore, upsert, business-key)")
	mergeCmd.Flags().StringSlice("tables", nil, "restrict the merge to these tables")

	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	modeName, _ := cmd.Flags().GetString("mode")
	var mode catalog.MergeMode
	switch modeName {
	case "replace":
		mode = catalog.MergeReplace
	case "ignore":
		mode = catalog.MergeIgnore
	case "upsert":
		mode = catalog.MergeUpsert
	case "business-key":
		mode = catalog.MergeBusinessKey
	default:
		return fmt.Errorf("unknown merge mode %q (want replace, ignore, upsert or business-key)", modeName)
	}
	tables, _ := cmd.Flags().GetStringSlice("tables")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, src := range args {
		if err := store.MergeFrom(src, catalog.MergeOpts{Mode: mode, Tables: tables}); err != nil {
			return fmt.Errorf("merge from %s: %w", src, err)
		}
		util.SuccessLog("Merged %s", src)
	}
	return store.Optimize()
}
