package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/util"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search the catalog",
	Long: `Search matches the query words against paths, titles, uploaders and
tags. With --fts a full-text index is built first and used for this and
every later search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 50, "rows to print")
	searchCmd.Flags().Bool("deleted", false, "include tombstoned rows")
	searchCmd.Flags().Bool("fts", false, "build and use the full-text index")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	includeDeleted, _ := cmd.Flags().GetBool("deleted")
	useFTS, _ := cmd.Flags().GetBool("fts")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	if useFTS && !store.HasFTS() {
		util.InfoLog("Building full-text index")
		if err := store.EnableFTS(); err != nil {
			return err
		}
	}

	query := strings.Join(args, " ")
	results, err := store.SearchMedia(query, catalog.SearchOpts{
		IncludeDeleted: includeDeleted,
		Limit:          limit,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		util.InfoLog("No matches for %q", query)
		return nil
	}

	for _, m := range results {
		fmt.Println(formatMatch(m))
	}
	util.SuccessLog("%d matches", len(results))
	return nil
}

// formatMatch renders one result line: path, then whatever metadata the
// row actually has
func formatMatch(m *catalog.Media) string {
	var details []string
	if m.Title != "" && m.Title != m.Path {
		details = append(details, m.Title)
	}
	if m.Uploader != "" {
		details = append(details, m.Uploader)
	}
	if m.Duration > 0 {
		details = append(details, (time.Duration(m.Duration) * time.Second).String())
	}
	if m.Size > 0 {
		details = append(details, humanize.Bytes(uint64(m.Size)))
	}
	if !m.Live() {
		details = append(details, "deleted")
	}
	if len(details) == 0 {
		return m.Path
	}
	return fmt.Sprintf("%s  (%s)", m.Path, strings.Join(details, ", "))
}
