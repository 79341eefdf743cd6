package probe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/franz/media-librarian/internal/util"
	"github.com/sourcegraph/conc/pool"
)

// SampleHash fingerprints a file by hashing its head, evenly spaced chunks
// and tail through positioned reads, so large files cost a few reads
// instead of a full pass. gap below 1 is a fraction of the file size;
// chunkSize 0 picks a size proportional to the file.
func SampleHash(path string, gap float64, chunkSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	size := fi.Size()

	if chunkSize <= 0 {
		// Between 64 KiB and 4 MiB, one permille of the file size
		chunkSize = int(size / 1000)
		if chunkSize < 64<<10 {
			chunkSize = 64 << 10
		}
		if chunkSize > 4<<20 {
			chunkSize = 4 << 20
		}
	}

	h := sha256.New()
	// Size goes into the digest so truncated copies never collide
	fmt.Fprintf(h, "%d:", size)

	if size <= int64(chunkSize)*3 {
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	var offsets []int64
	offsets = append(offsets, 0)
	for _, start := range CalculateSegments(float64(size), float64(chunkSize), gap) {
		off := int64(start)
		if off > 0 && off != offsets[len(offsets)-1] {
			offsets = append(offsets, off)
		}
	}
	tail := size - int64(chunkSize)
	if offsets[len(offsets)-1] != tail {
		offsets = append(offsets, tail)
	}

	buf := make([]byte, chunkSize)
	for _, off := range offsets {
		n, err := f.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read %s at %d: %w", path, off, err)
		}
		h.Write(buf[:n])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FullHash is the plain whole-file SHA-256
func FullHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SampleCompare groups the given paths by content. Files are sample-hashed
// concurrently first; only groups that collide on the sample get the full
// hash. Returns groups of two or more identical files.
func SampleCompare(paths []string, gap float64, chunkSize int) ([][]string, error) {
	sampled := groupBy(paths, func(p string) (string, error) {
		return SampleHash(p, gap, chunkSize)
	})

	var groups [][]string
	for _, candidates := range sampled {
		if len(candidates) < 2 {
			continue
		}
		confirmed := groupBy(candidates, FullHash)
		for _, g := range confirmed {
			if len(g) >= 2 {
				groups = append(groups, g)
			}
		}
	}
	return groups, nil
}

// groupBy hashes paths through a bounded worker pool and buckets them.
// Unreadable files are logged and left out.
func groupBy(paths []string, hash func(string) (string, error)) map[string][]string {
	var mu sync.Mutex
	buckets := map[string][]string{}

	p := pool.New().WithMaxGoroutines(runtime.NumCPU())
	for _, path := range paths {
		p.Go(func() {
			sum, err := hash(path)
			if err != nil {
				util.WarnLog("Failed to hash %s: %v", path, err)
				return
			}
			mu.Lock()
			buckets[sum] = append(buckets[sum], path)
			mu.Unlock()
		})
	}
	p.Wait()
	return buckets
}
