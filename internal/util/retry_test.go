package util

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}
}

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset errno", syscall.ECONNRESET, true},
		{"timeout errno", syscall.ETIMEDOUT, true},
		{"wrapped in PathError", &os.PathError{Op: "read", Path: "/x", Err: syscall.EAGAIN}, true},
		{"message pattern", errors.New("dial tcp: i/o timeout"), true},
		{"broken pipe message", errors.New("write: broken pipe"), true},
		{"permission denied", syscall.EACCES, false},
		{"plain error", errors.New("no such column"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsFatalIOError(t *testing.T) {
	if !IsFatalIOError(syscall.EMFILE) || !IsFatalIOError(syscall.EIO) {
		t.Error("descriptor exhaustion and I/O failure must be fatal")
	}
	if IsFatalIOError(syscall.ENOENT) || IsFatalIOError(nil) {
		t.Error("ordinary errors flagged fatal")
	}
	wrapped := fmt.Errorf("walking tree: %w", &os.PathError{Op: "open", Path: "/x", Err: syscall.ENFILE})
	if !IsFatalIOError(wrapped) {
		t.Error("wrapped ENFILE not recognized")
	}
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	calls := 0
	got, err := RetryWithBackoff(fastRetryConfig(5), func() (string, error) {
		calls++
		if calls < 3 {
			return "", syscall.ECONNRESET
		}
		return "done", nil
	}, "test op")
	if err != nil {
		t.Fatalf("RetryWithBackoff failed: %v", err)
	}
	if got != "done" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestRetryWithBackoff_NonRetryableStopsEarly(t *testing.T) {
	calls := 0
	permanent := errors.New("schema mismatch")
	_, err := RetryWithBackoff(fastRetryConfig(5), func() (int, error) {
		calls++
		return 0, permanent
	}, "test op")
	if !errors.Is(err, permanent) {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error retried %d times", calls)
	}
}

func TestRetryWithBackoff_Exhaustion(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(fastRetryConfig(3), func() (int, error) {
		calls++
		return 0, syscall.ETIMEDOUT
	}, "test op")
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if !errors.Is(err, syscall.ETIMEDOUT) {
		t.Errorf("cause lost: %v", err)
	}
	if calls != 3 {
		t.Errorf("made %d attempts, want 3", calls)
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(fastRetryConfig(2), func() error {
		calls++
		if calls == 1 {
			return syscall.EAGAIN
		}
		return nil
	}, "test op")
	if err != nil || calls != 2 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}
