//go:build !linux

package util

import (
	"os"
	"time"
)

func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}

func isFileOpen(path string) (bool, bool) {
	// No cheap primitive outside linux; report the gap to the caller.
	return false, false
}
