package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open event log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad JSONL line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestEventLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewEventLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.LogScan("/music", 120, 5, 1, 2); err != nil {
		t.Fatalf("LogScan failed: %v", err)
	}
	if err := logger.LogDownload("http://x/a.mp3", "/dl/a.mp3", 4096, 1500*time.Millisecond, nil); err != nil {
		t.Fatalf("LogDownload failed: %v", err)
	}
	if err := logger.LogError(EventSpider, "http://x/page", errors.New("boom")); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, logger.Path())
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	scan := events[0]
	if scan.Event != EventScan || scan.Path != "/music" {
		t.Errorf("scan event wrong: %+v", scan)
	}
	if scan.Extra["candidates"] != "120" || scan.Extra["added"] != "5" {
		t.Errorf("scan extras wrong: %v", scan.Extra)
	}
	if scan.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	dl := events[1]
	if dl.Webpath != "http://x/a.mp3" || dl.Bytes != 4096 || dl.Duration != 1500 {
		t.Errorf("download event wrong: %+v", dl)
	}

	failure := events[2]
	if failure.Level != LevelError || failure.Error != "boom" {
		t.Errorf("error event wrong: %+v", failure)
	}
}

func TestEventLogger_LevelFilter(t *testing.T) {
	testCases := []struct {
		name     string
		minLevel EventLevel
		want     int
	}{
		{"debug keeps everything", LevelDebug, 3},
		{"info drops debug", LevelInfo, 2},
		{"error keeps failures only", LevelError, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewEventLogger(t.TempDir(), tc.minLevel)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}

			logger.LogExtract("/a.mp3", "audio", nil)                    // debug
			logger.LogCheck("/a.mp3", 0)                                 // info
			logger.LogExtract("/b.mp3", "audio", errors.New("no probe")) // error
			if err := logger.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			if events := readEvents(t, logger.Path()); len(events) != tc.want {
				t.Errorf("got %d events, want %d", len(events), tc.want)
			}
		})
	}
}

func TestEventLogger_CheckLevels(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	logger.LogCheck("/clean.mp3", 0)
	logger.LogCheck("/broken.mp3", 40)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, logger.Path())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Level != LevelInfo {
		t.Errorf("clean check level = %q", events[0].Level)
	}
	if events[1].Level != LevelWarning || events[1].Corruption != 40 {
		t.Errorf("corrupt check event wrong: %+v", events[1])
	}
}

func TestEventLogger_SkipReason(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	logger.LogSkip(EventScan, "/mnt/external", "offline")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Event != EventSkip || e.Action != string(EventScan) || e.Reason != "offline" {
		t.Errorf("skip event wrong: %+v", e)
	}
}

func TestNullLogger(t *testing.T) {
	logger := NullLogger()
	if err := logger.Log(&Event{Level: LevelError, Event: EventError}); err != nil {
		t.Errorf("nil logger Log = %v", err)
	}
	if err := logger.LogScan("/x", 0, 0, 0, 0); err != nil {
		t.Errorf("nil logger LogScan = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger Close = %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("nil logger Path = %q", logger.Path())
	}
}
