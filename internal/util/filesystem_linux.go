//go:build linux

package util

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

func accessTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return info.ModTime()
}

// isFileOpen walks /proc/*/fd looking for a link to path. Best effort:
// unreadable fd dirs (other users' processes) are skipped.
func isFileOpen(path string) (bool, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, true
	}

	procs, err := os.ReadDir("/proc")
	if err != nil {
		return false, false
	}

	self := strconv.Itoa(os.Getpid())
	for _, p := range procs {
		if !p.IsDir() || p.Name() == self {
			continue
		}
		if _, err := strconv.Atoi(p.Name()); err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", p.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if target == abs {
				return true, true
			}
		}
	}
	return false, true
}
