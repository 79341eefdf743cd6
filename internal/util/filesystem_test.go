package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetFileMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	size, mtime, err := GetFileMetadata(path)
	if err != nil {
		t.Fatalf("GetFileMetadata failed: %v", err)
	}
	if size != 5 {
		t.Errorf("size = %d, want 5", size)
	}
	if now := time.Now().Unix(); mtime < now-60 || mtime > now+60 {
		t.Errorf("mtime %d not near now", mtime)
	}

	if _, _, err := GetFileMetadata(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsSameFilesystem(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	same, err := IsSameFilesystem(a, b)
	if err != nil {
		t.Fatalf("IsSameFilesystem failed: %v", err)
	}
	if !same {
		t.Error("siblings reported on different filesystems")
	}

	if _, err := IsSameFilesystem(a, filepath.Join(dir, "absent")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestDeviceID(t *testing.T) {
	dir := t.TempDir()
	id, ok := DeviceID(dir)
	if !ok {
		t.Skip("st_dev not exposed on this platform")
	}
	id2, _ := DeviceID(dir)
	if id != id2 {
		t.Errorf("DeviceID unstable: %d vs %d", id, id2)
	}
	if _, ok := DeviceID(filepath.Join(dir, "absent")); ok {
		t.Error("DeviceID succeeded for missing path")
	}
}

func TestPreserveTimes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	want := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, want, want); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}
	if err := PreserveTimes(src, dst); err != nil {
		t.Fatalf("PreserveTimes failed: %v", err)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !fi.ModTime().Equal(want) {
		t.Errorf("mtime = %v, want %v", fi.ModTime(), want)
	}
}
