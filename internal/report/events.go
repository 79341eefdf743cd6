package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventScan     EventType = "scan"
	EventSpider   EventType = "spider"
	EventExtract  EventType = "extract"
	EventDownload EventType = "download"
	EventProcess  EventType = "process"
	EventCheck    EventType = "check"
	EventMerge    EventType = "merge"
	EventSkip     EventType = "skip"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	Path       string            `json:"path,omitempty"`
	Webpath    string            `json:"webpath,omitempty"`
	DestPath   string            `json:"dest_path,omitempty"`
	Action     string            `json:"action,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Bytes      int64             `json:"bytes,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"`
	Corruption int64             `json:"corruption,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogScan logs one scan diff outcome for a root
func (l *EventLogger) LogScan(root string, candidates int, added, undeleted, deleted int64) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventScan,
		Path:  root,
		Extra: map[string]string{
			"candidates": fmt.Sprintf("%d", candidates),
			"added":      fmt.Sprintf("%d", added),
			"undeleted":  fmt.Sprintf("%d", undeleted),
			"deleted":    fmt.Sprintf("%d", deleted),
		},
	})
}

// LogExtract logs a metadata extraction outcome
func (l *EventLogger) LogExtract(path, mediaType string, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level: level,
		Event: EventExtract,
		Path:  path,
		Error: errMsg,
		Extra: map[string]string{"type": mediaType},
	})
}

// LogDownload logs a download outcome
func (l *EventLogger) LogDownload(webpath, localPath string, bytes int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventDownload,
		Webpath:  webpath,
		Path:     localPath,
		Bytes:    bytes,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogProcess logs a transcode outcome
func (l *EventLogger) LogProcess(source, dest, action string, saved int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventProcess,
		Path:     source,
		DestPath: dest,
		Action:   action,
		Bytes:    saved,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogCheck logs a media-check outcome
func (l *EventLogger) LogCheck(path string, corruption int64) error {
	level := LevelInfo
	if corruption > 0 {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:      level,
		Event:      EventCheck,
		Path:       path,
		Corruption: corruption,
	})
}

// LogSkip logs an intentionally ignored item
func (l *EventLogger) LogSkip(event EventType, path, reason string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventSkip,
		Path:   path,
		Action: string(event),
		Reason: reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
