package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/report"
	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/util"
	"github.com/franz/media-librarian/internal/web"
)

var webaddCmd = &cobra.Command{
	Use:   "webadd <url>...",
	Short: "Crawl web folders and queue their files for download",
	Long: `Webadd registers each URL as a web-folder playlist and crawls it
breadth-first. Files under the tree become pending catalog rows that the
download command picks up later.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWebadd,
}

func init() {
	webaddCmd.Flags().Int("max-pages", 0, "index pages fetched per run (0 = no limit)")
	webaddCmd.Flags().Int("connections", 4, "connection pool size")

	rootCmd.AddCommand(webaddCmd)
}

func runWebadd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	connections, _ := cmd.Flags().GetInt("connections")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := newLogger()
	defer logger.Close()

	session := web.NewSession(connections)

	for _, root := range args {
		u, err := url.Parse(root)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("not an http(s) URL: %s", root)
		}

		playlistID, err := store.PlaylistAdd(root, &catalog.Playlist{
			ExtractorKey: catalog.ExtractorWebFolder,
			Title:        strings.TrimSuffix(u.Path, "/"),
			Uploader:     u.Hostname(),
		}, true)
		if err != nil {
			return err
		}

		result, err := scan.Spider(ctx, session, store, []string{root}, scan.SpiderOpts{
			PlaylistID: playlistID,
			MaxPages:   maxPages,
		})
		if err != nil {
			logger.LogError(report.EventSpider, root, err)
			return err
		}
		if err := store.TouchPlaylist(playlistID); err != nil {
			return err
		}
		util.SuccessLog("Crawled %s: %d pages, %d added, %d known, %d still queued",
			root, result.Pages, result.Added, result.Known, result.Queued)
	}
	return nil
}
