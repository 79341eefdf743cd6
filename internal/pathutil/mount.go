package pathutil

import (
	"fmt"
	"path/filepath"

	"github.com/franz/media-librarian/internal/util"
)

// Mountpoint locates the mountpoint containing path by ascending parent
// directories while the device ID stays stable.
func Mountpoint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	dev, ok := util.DeviceID(abs)
	if !ok {
		return "", fmt.Errorf("device ID unavailable for %s", abs)
	}

	cur := abs
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur, nil
		}
		parentDev, ok := util.DeviceID(parent)
		if !ok || parentDev != dev {
			return cur, nil
		}
		cur = parent
	}
}

// RelativeFromMountpoint composes a destination for src under dstRoot,
// preserving the path segments below src's mountpoint. A file at
// /mnt/tank/video/a.mkv with dstRoot /backup maps to /backup/video/a.mkv.
func RelativeFromMountpoint(src, dstRoot string) (string, error) {
	mount, err := Mountpoint(src)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(mount, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s from %s: %w", abs, mount, err)
	}

	return filepath.Join(dstRoot, rel), nil
}
