package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/runner"
	"github.com/franz/media-librarian/internal/util"
	"github.com/sourcegraph/conc/pool"
)

// diskScript runs on the remote host and reports its block devices. Kept
// dependency-free: POSIX sh plus lsblk, which every target distro ships.
const diskScript = `#!/bin/sh
node=$(uname -n)
printf '{"node":"%s","disks":[' "$node"
first=1
lsblk -b -n -o NAME,SIZE,MOUNTPOINT,FSTYPE -d 2>/dev/null | while read -r name size mount fstype; do
	[ -z "$name" ] && continue
	[ $first -eq 1 ] || printf ','
	first=0
	printf '{"name":"%s","size":%s,"mountpoint":"%s","fstype":"%s"}' "$name" "${size:-0}" "$mount" "$fstype"
done
printf ']}\n'
`

// HostReport is the sidecar script's output
type HostReport struct {
	Node  string `json:"node"`
	Disks []Disk `json:"disks"`
}

// Disk is one block device on a scanned host
type Disk struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Mountpoint string `json:"mountpoint"`
	Fstype     string `json:"fstype"`
}

// ComputerOpts controls the SSH fan-out
type ComputerOpts struct {
	User    string
	Port    int
	Workers int
}

// Computers inventories remote hosts concurrently: each host gets one SSH
// session, the sidecar script, and a fresh set of disk rows under its
// playlist. A host's old rows are truncated first so the disk view is
// authoritative per refresh.
func Computers(ctx context.Context, store *catalog.Store, hosts []string, opts ComputerOpts) error {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	// Store writes stay on one goroutine; the fan-out is network-bound
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(opts.Workers).WithErrors()
	for _, host := range hosts {
		p.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			report, err := scanHost(host, opts)
			if err != nil {
				util.ErrorLog("Failed to scan %s: %v", host, err)
				if runner.KindOf(err) == runner.KindEnvironment {
					return err
				}
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			return persistHost(store, host, report)
		})
	}
	return p.Wait()
}

func scanHost(host string, opts ComputerOpts) (*HostReport, error) {
	remote, err := runner.Dial(host, opts.User, opts.Port)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	script, err := remote.UploadBytes("disks.sh", []byte(diskScript))
	if err != nil {
		return nil, err
	}

	res, err := remote.Run("sh "+script, nil)
	if err != nil {
		return nil, err
	}

	var report HostReport
	if err := json.Unmarshal([]byte(res.Stdout), &report); err != nil {
		return nil, fmt.Errorf("failed to parse disk report from %s: %w", host, err)
	}
	if report.Node == "" {
		report.Node = host
	}
	return &report, nil
}

// persistHost upserts the host playlist and replaces its disk rows
func persistHost(store *catalog.Store, host string, report *HostReport) error {
	now := time.Now().Unix()
	playlistID, err := store.PlaylistAdd("ssh://"+host, &catalog.Playlist{
		ExtractorKey: catalog.ExtractorComputer,
		Title:        report.Node,
		TimeModified: now,
	}, false)
	if err != nil {
		return err
	}

	if err := store.TruncateMediaForPlaylist(playlistID); err != nil {
		return err
	}

	entries := make([]*catalog.Media, 0, len(report.Disks))
	for _, d := range report.Disks {
		entries = append(entries, &catalog.Media{
			PlaylistsID: playlistID,
			Path:        fmt.Sprintf("ssh://%s/dev/%s", host, d.Name),
			Title:       d.Name,
			Size:        d.Size,
			Tags:        d.Fstype,
			Uploader:    report.Node,
			Type:        "disk",
			LiveStatus:  d.Mountpoint,
			Corruption:  -1,
		})
	}
	if err := store.MediaAdd(entries...); err != nil {
		return err
	}

	util.InfoLog("Host %s: %d disks", report.Node, len(report.Disks))
	return nil
}
