package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/download"
	"github.com/franz/media-librarian/internal/web"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Work the queue of pending downloads",
	Long: `Download drains catalog rows that still point at remote URLs.
Audio and video go through yt-dlp, images through gallery-dl, everything
else through a plain HTTP fetch with resume support.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringP("profile", "p", "filesystem", "backend selection (audio, video, image, filesystem)")
	downloadCmd.Flags().StringP("dest", "d", "downloads", "destination directory")
	downloadCmd.Flags().Int64("retries", 5, "attempts before a row is abandoned")
	downloadCmd.Flags().IntP("limit", "n", 0, "rows per run (0 = all)")
	downloadCmd.Flags().Bool("safe", false, "probe extractor support before dispatching")
	downloadCmd.Flags().Duration("sleep-min", 2*time.Second, "minimum pause between downloads")
	downloadCmd.Flags().Duration("sleep-max", 10*time.Second, "maximum pause between downloads")
	downloadCmd.Flags().Int("connections", 4, "connection pool size")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	profileName, _ := cmd.Flags().GetString("profile")
	profile, err := parseOneProfile(profileName)
	if err != nil {
		return err
	}
	dest, _ := cmd.Flags().GetString("dest")
	retries, _ := cmd.Flags().GetInt64("retries")
	limit, _ := cmd.Flags().GetInt("limit")
	safe, _ := cmd.Flags().GetBool("safe")
	sleepMin, _ := cmd.Flags().GetDuration("sleep-min")
	sleepMax, _ := cmd.Flags().GetDuration("sleep-max")
	connections, _ := cmd.Flags().GetInt("connections")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	session := web.NewSession(connections)

	_, err = download.Run(cmd.Context(), store, session, download.Opts{
		Profile:  profile,
		DestDir:  dest,
		Retries:  retries,
		Limit:    limit,
		Safe:     safe,
		SleepMin: sleepMin,
		SleepMax: sleepMax,
	})
	return err
}
