package main

import (
	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/util"
)

var playcountsCmd = &cobra.Command{
	Use:   "playcounts <source.db>...",
	Short: "Copy play history from other catalogs",
	Long: `Playcounts imports play history rows from the given catalog files.
Paths are matched after swapping --src-prefix for --tgt-prefix, so history
follows files that moved between machines.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlaycounts,
}

func init() {
	playcountsCmd.Flags().String("src-prefix", "", "path prefix in the source catalogs")
	playcountsCmd.Flags().String("tgt-prefix", "", "replacement prefix in this catalog")

	rootCmd.AddCommand(playcountsCmd)
}

func runPlaycounts(cmd *cobra.Command, args []string) error {
	srcPrefix, _ := cmd.Flags().GetString("src-prefix")
	tgtPrefix, _ := cmd.Flags().GetString("tgt-prefix")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	copied, err := store.CopyPlayCounts(args, srcPrefix, tgtPrefix)
	if err != nil {
		return err
	}
	util.SuccessLog("Copied %d history rows from %d catalogs", copied, len(args))
	return nil
}
