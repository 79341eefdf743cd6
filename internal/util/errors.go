package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates a file format or operation the tool refuses
	ErrUnsupported = errors.New("unsupported")

	// ErrUnplayable indicates a source file whose bytes are bad
	ErrUnplayable = errors.New("unplayable")

	// ErrTimeout indicates an external call exceeded its deadline
	ErrTimeout = errors.New("timed out")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOffline indicates a scan root that looks like an unmounted volume
	ErrOffline = errors.New("mount appears offline")

	// ErrBlocked indicates an item excluded by a blocklist rule
	ErrBlocked = errors.New("blocklisted")

	// ErrEnvironment indicates the host is unhealthy (EMFILE, EIO, OOM,
	// disk full, missing required tool); aborts the current run
	ErrEnvironment = errors.New("environment error")
)
