package download

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/util"
	"github.com/franz/media-librarian/internal/web"
)

// Opts controls one coordinator run
type Opts struct {
	Profile  scan.Profile
	DestDir  string
	Retries  int64 // max download_attempts before a row is abandoned
	Limit    int
	Safe     bool // probe extractor support before dispatching
	SleepMin time.Duration
	SleepMax time.Duration
}

// Result summarizes a run
type Result struct {
	Dispatched int
	Succeeded  int
	Failed     int
	Skipped    int
}

// Run drains the download queue one row at a time: blocklist, safe-mode
// and recency gates first, then the profile's backend, then a commit of
// whatever happened. Peer processes working the same catalog are honored
// by re-reading the row just before dispatch.
func Run(ctx context.Context, store *catalog.Store, session *web.Session, opts Opts) (*Result, error) {
	if opts.Retries <= 0 {
		opts.Retries = 5
	}

	rules, err := store.BlocklistRules()
	if err != nil {
		return nil, err
	}

	queue, err := store.DownloadQueue(opts.Retries, opts.Limit)
	if err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		util.InfoLog("Download queue is empty")
		return &Result{}, nil
	}
	util.InfoLog("Download queue: %d rows", len(queue))

	bar := progressbar.NewOptions(len(queue),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWriter(util.ProgressWriter()),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(200*time.Millisecond),
	)
	result := &Result{}

	for _, row := range queue {
		bar.Add(1)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if catalog.Blocked(rules, row) {
			util.DebugLog("Blocklisted: %s", row.Path)
			result.Skipped++
			continue
		}

		if opts.Safe && !safeSupported(ctx, opts.Profile, row.Path) {
			util.DebugLog("Not supported in safe mode: %s", row.Path)
			result.Skipped++
			continue
		}

		// Recency gate: a peer process may have handled the row since the
		// queue was built
		fresh, err := store.GetMediaByPath(row.Path)
		if err != nil {
			return result, err
		}
		if fresh == nil {
			result.Skipped++
			continue
		}
		if !fresh.Live() || fresh.TimeModified > row.TimeModified ||
			fresh.DownloadAttempts > opts.Retries {
			result.Skipped++
			continue
		}

		result.Dispatched++
		if err := dispatch(ctx, store, session, row, opts); err != nil {
			if runner.KindOf(err) == runner.KindEnvironment || util.IsFatalIOError(err) {
				return result, err
			}
			util.WarnLog("Download failed for %s: %v", row.Path, err)
			result.Failed++
		} else {
			result.Succeeded++
		}

		sleep(ctx, opts)
	}

	bar.Finish()
	util.SuccessLog("Downloads: %d dispatched, %d ok, %d failed, %d skipped",
		result.Dispatched, result.Succeeded, result.Failed, result.Skipped)
	return result, nil
}

// dispatch runs the profile backend and commits the outcome
func dispatch(ctx context.Context, store *catalog.Store, session *web.Session, row *catalog.Media, opts Opts) error {
	var out *fetched
	var err error

	switch opts.Profile {
	case scan.ProfileAudio, scan.ProfileVideo:
		out, err = tubeFetch(ctx, row.Path, opts.DestDir)
	case scan.ProfileImage:
		out, err = galleryFetch(ctx, row.Path, opts.DestDir)
	default:
		out, err = httpFetch(ctx, session, row.Path, opts.DestDir)
	}

	if err != nil {
		commitErr := store.DownloadCommit(row.Path, nil, catalog.CommitOpts{
			Error: firstLine(err.Error()),
		})
		if commitErr != nil {
			return commitErr
		}
		return err
	}

	if out.NotFound {
		return store.DownloadCommit(row.Path, nil, catalog.CommitOpts{
			Error:       "404",
			MarkDeleted: true,
		})
	}

	if out.Info != nil {
		out.Info.PlaylistsID = row.PlaylistsID
	}
	return store.DownloadCommit(row.Path, out.Info, catalog.CommitOpts{
		LocalPath:          out.LocalPath,
		DeleteWebpathEntry: true,
	})
}

// httpFetch is the filesystem backend: a plain fetch of the row's URL
func httpFetch(ctx context.Context, session *web.Session, rawURL, destDir string) (*fetched, error) {
	local, err := Fetch(ctx, session, rawURL, destDir)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return &fetched{NotFound: true}, nil
		}
		return nil, err
	}
	return &fetched{LocalPath: local, Info: &catalog.Media{Corruption: -1}}, nil
}

func safeSupported(ctx context.Context, profile scan.Profile, rawURL string) bool {
	switch profile {
	case scan.ProfileAudio, scan.ProfileVideo:
		return supports(ctx, "yt-dlp", rawURL)
	case scan.ProfileImage:
		return supports(ctx, "gallery-dl", rawURL)
	}
	return true
}

// sleep waits a uniform random interval between dispatches
func sleep(ctx context.Context, opts Opts) {
	if opts.SleepMax <= 0 {
		return
	}
	d := opts.SleepMin
	if opts.SleepMax > opts.SleepMin {
		d += time.Duration(rand.Int63n(int64(opts.SleepMax - opts.SleepMin)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
