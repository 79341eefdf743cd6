package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/media-librarian/internal/pathutil"
	"github.com/franz/media-librarian/internal/util"
	"github.com/franz/media-librarian/internal/web"
)

// resumeThreshold is the smallest partial worth resuming; below it a
// restart costs less than the range dance
const resumeThreshold = 5 << 20

// StatusError is a non-2xx terminal response from the origin
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

// Fetch downloads a URL into destDir and returns the local path. Partial
// files from an earlier run are resumed via a Range request when large
// enough; a server that ignores the range gets a fresh full GET. The
// origin's Last-Modified lands on the finished file.
func Fetch(ctx context.Context, session *web.Session, rawURL, destDir string) (string, error) {
	dest, err := planDest(rawURL, destDir)
	if err != nil {
		return "", err
	}

	var offset int64
	if fi, err := os.Stat(dest); err == nil {
		if fi.Size() >= resumeThreshold {
			offset = fi.Size()
		} else if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to drop stale partial %s: %w", dest, err)
		}
	}

	header := http.Header{}
	if offset > 0 {
		header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := session.Get(ctx, rawURL, header)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		util.DebugLog("Resuming %s at byte %d", rawURL, offset)
	case offset > 0:
		// Server ignored the range; start over with what it sent
		util.DebugLog("Server ignored range for %s, restarting", rawURL)
		offset = 0
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return "", &StatusError{URL: rawURL, Code: resp.StatusCode}
		}
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", dest, err)
	}

	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	if closeErr != nil {
		return "", closeErr
	}
	util.DebugLog("Fetched %s: %d bytes", rawURL, offset+written)

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			if err := os.Chtimes(dest, time.Now(), t); err != nil {
				util.DebugLog("Failed to set mtime on %s: %v", dest, err)
			}
		}
	}
	return dest, nil
}

// planDest derives a cleaned local filename from the URL's last segment
func planDest(rawURL, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	name := u.Path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = pathutil.URLDecode(name)
	if name == "" {
		name = "index"
	}
	name = pathutil.Clean(name, pathutil.CleanOpts{MaxNameLen: 255})
	return filepath.Join(destDir, u.Hostname(), name), nil
}
