package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/franz/media-librarian/internal/web"
)

func TestPlanDest(t *testing.T) {
	testCases := []struct {
		rawURL string
		want   string
	}{
		{"http://example.com/files/My%20Song.mp3", filepath.Join("dl", "example.com", "My Song.mp3")},
		{"http://example.com/dir/", filepath.Join("dl", "example.com", "index")},
		{"http://example.com", filepath.Join("dl", "example.com", "index")},
		{"http://example.com/a.mp3?session=42", filepath.Join("dl", "example.com", "a.mp3")},
	}

	for _, tc := range testCases {
		got, err := planDest(tc.rawURL, "dl")
		if err != nil {
			t.Errorf("planDest(%q) failed: %v", tc.rawURL, err)
			continue
		}
		if got != tc.want {
			t.Errorf("planDest(%q) = %q, want %q", tc.rawURL, got, tc.want)
		}
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{URL: "http://example.com/x", Code: 404}
	if got := err.Error(); got != "http://example.com/x returned status 404" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFetch(t *testing.T) {
	content := []byte("some media payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write(content)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	session := web.NewSession(1)

	dest, err := Fetch(context.Background(), session, srv.URL+"/clip.mp4", destDir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: %d bytes", len(got))
	}

	fi, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if fi.ModTime().Year() != 2006 {
		t.Errorf("Last-Modified not applied: mtime %v", fi.ModTime())
	}

	u, _ := url.Parse(srv.URL)
	if !strings.Contains(dest, u.Hostname()) {
		t.Errorf("dest %q missing host subdirectory", dest)
	}
}

func TestFetch_TerminalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), web.NewSession(1), srv.URL+"/gone.mp4", t.TempDir())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("Code = %d", statusErr.Code)
	}
}

func TestFetch_Resume(t *testing.T) {
	full := bytes.Repeat([]byte("abcdefgh"), 1<<20) // 8 MiB
	var sawRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRange = r.Header.Get("Range")
		if sawRange == "" {
			w.Write(full)
			return
		}
		var offset int
		fmt.Sscanf(sawRange, "bytes=%d-", &offset)
		w.Header().Set("Content-Range",
			"bytes "+strconv.Itoa(offset)+"-"+strconv.Itoa(len(full)-1)+"/"+strconv.Itoa(len(full)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(full[offset:])
	}))
	defer srv.Close()

	destDir := t.TempDir()
	rawURL := srv.URL + "/big.bin"

	// A large partial from an interrupted run
	dest, err := planDest(rawURL, destDir)
	if err != nil {
		t.Fatalf("planDest failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	partial := 6 << 20
	if err := os.WriteFile(dest, full[:partial], 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := Fetch(context.Background(), web.NewSession(1), rawURL, destDir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != dest {
		t.Errorf("dest = %q, want %q", got, dest)
	}
	if sawRange != fmt.Sprintf("bytes=%d-", partial) {
		t.Errorf("Range = %q", sawRange)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, full) {
		t.Errorf("resumed file wrong: %d bytes, want %d", len(data), len(full))
	}
}

func TestFetch_SmallPartialRestarts(t *testing.T) {
	content := []byte("fresh full body")
	var sawRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRange = r.Header.Get("Range")
		w.Write(content)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	rawURL := srv.URL + "/small.bin"
	dest, _ := planDest(rawURL, destDir)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	// Below the resume threshold: not worth a range request
	if err := os.WriteFile(dest, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Fetch(context.Background(), web.NewSession(1), rawURL, destDir); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if sawRange != "" {
		t.Errorf("tiny partial sent a Range header: %q", sawRange)
	}
	data, _ := os.ReadFile(dest)
	if !bytes.Equal(data, content) {
		t.Errorf("file = %q, want fresh content", data)
	}
}
