package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/franz/media-librarian/internal/util"
)

// Kind classifies a failed external invocation
type Kind int

const (
	// KindNone means the call succeeded
	KindNone Kind = iota
	// KindTimeout means the deadline fired and the process group was killed
	KindTimeout
	// KindUnplayable means the source file is corrupt or unreadable
	KindUnplayable
	// KindUnsupported means the tool refuses the format; callers usually
	// pass the file through unchanged
	KindUnsupported
	// KindEnvironment means the host or tool is unhealthy (missing binary,
	// I/O error, OOM-killed); always surfaced to the top level
	KindEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnplayable:
		return "unplayable"
	case KindUnsupported:
		return "unsupported"
	case KindEnvironment:
		return "environment"
	default:
		return "none"
	}
}

// Error is a classified failure from an external tool
type Error struct {
	Kind   Kind
	Tool   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind, KindNone for nil or foreign errors
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindNone
}

// Rule maps a stderr pattern to an error kind. Rules are matched in order;
// the first hit wins.
type Rule struct {
	Pattern *regexp.Regexp
	Kind    Kind
}

// Result holds the captured output of a finished process
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Cmd describes one external invocation
type Cmd struct {
	Args          []string      // argv, Args[0] resolved via PATH
	Timeout       time.Duration // 0 = no deadline
	MaxRAM        int64         // address-space cap in bytes, 0 = none
	IgnoreRegexps []*regexp.Regexp
	Classify      []Rule
	DefaultKind   Kind // kind for unmatched nonzero exits (default Unplayable)
	Stdin         string
}

var (
	lookPathMu    sync.Mutex
	lookPathCache = map[string]error{}
)

// Have reports whether tool is resolvable on PATH. Results are cached for
// the life of the process.
func Have(tool string) bool {
	lookPathMu.Lock()
	defer lookPathMu.Unlock()
	err, seen := lookPathCache[tool]
	if !seen {
		_, err = exec.LookPath(tool)
		lookPathCache[tool] = err
	}
	return err == nil
}

// Run executes the command locally, enforcing timeout and RAM cap, and
// classifies any failure against the command's stderr rules.
func Run(ctx context.Context, c Cmd) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, &Error{Kind: KindEnvironment, Tool: "?", Err: fmt.Errorf("empty command")}
	}
	tool := c.Args[0]

	if !Have(tool) {
		return nil, &Error{Kind: KindEnvironment, Tool: tool, Err: util.ErrNotFound}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.Command(tool, c.Args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	setProcGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: KindEnvironment, Tool: tool, Err: err}
	}

	if c.MaxRAM > 0 {
		if err := applyRAMCap(cmd.Process.Pid, c.MaxRAM); err != nil {
			util.DebugLog("RAM cap not applied to %s: %v", tool, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		timedOut = true
		killProcGroup(cmd)
		waitErr = <-done
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   filterLines(stderr.String(), c.IgnoreRegexps),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if timedOut {
		util.WarnLog("%s timed out after %s", tool, c.Timeout)
		return res, &Error{Kind: KindTimeout, Tool: tool, Stderr: res.Stderr, Err: util.ErrTimeout}
	}

	if waitErr == nil && res.ExitCode == 0 {
		util.DebugLog("%s ok: %s", tool, firstLine(res.Stderr))
		return res, nil
	}

	kind := classify(res, c)
	util.WarnLog("%s failed (%s, exit %d): %s", tool, kind, res.ExitCode, firstLine(res.Stderr))
	return res, &Error{Kind: kind, Tool: tool, Stderr: res.Stderr, Err: waitErr}
}

// classify maps a nonzero exit onto the error taxonomy
func classify(res *Result, c Cmd) Kind {
	// SIGKILL with a RAM cap in force usually means the cap fired
	if res.ExitCode == -1 && c.MaxRAM > 0 {
		return KindUnplayable
	}

	lower := strings.ToLower(res.Stderr)
	for _, env := range []string{"out of memory", "cannot allocate memory", "too many open files", "no space left", "input/output error"} {
		if strings.Contains(lower, env) {
			return KindEnvironment
		}
	}

	for _, rule := range c.Classify {
		if rule.Pattern.MatchString(res.Stderr) {
			return rule.Kind
		}
	}

	if c.DefaultKind != KindNone {
		return c.DefaultKind
	}
	return KindUnplayable
}

func filterLines(s string, ignores []*regexp.Regexp) string {
	if len(ignores) == 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		drop := false
		for _, re := range ignores {
			if re.MatchString(line) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
