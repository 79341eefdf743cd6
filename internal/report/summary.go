package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/util"
)

// RunSummary is the one-line end-of-run accounting
type RunSummary struct {
	Started    time.Time
	LiveMedia  int64
	Tombstoned int64
	Playlists  int64
	Added      int64
	Downloaded int64
	Bytes      int64
	Failed     int64
}

// Gather reads the catalog counters into a summary
func Gather(store *catalog.Store, started time.Time) (*RunSummary, error) {
	live, tombstoned, playlists, err := store.Counts()
	if err != nil {
		return nil, err
	}
	return &RunSummary{
		Started:    started,
		LiveMedia:  live,
		Tombstoned: tombstoned,
		Playlists:  playlists,
	}, nil
}

// Print writes the summary line, humanized
func (s *RunSummary) Print() {
	parts := []string{
		fmt.Sprintf("%s media", humanize.Comma(s.LiveMedia)),
		fmt.Sprintf("%s playlists", humanize.Comma(s.Playlists)),
	}
	if s.Tombstoned > 0 {
		parts = append(parts, fmt.Sprintf("%s tombstoned", humanize.Comma(s.Tombstoned)))
	}
	if s.Added > 0 {
		parts = append(parts, fmt.Sprintf("%s added", humanize.Comma(s.Added)))
	}
	if s.Downloaded > 0 {
		parts = append(parts, fmt.Sprintf("%s downloaded (%s)",
			humanize.Comma(s.Downloaded), humanize.Bytes(uint64(s.Bytes))))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%s failed", humanize.Comma(s.Failed)))
	}
	elapsed := time.Since(s.Started).Round(time.Second)
	util.SuccessLog("Done in %s: %s", elapsed, strings.Join(parts, ", "))
}
