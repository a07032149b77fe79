package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	// ErrNoDomain is returned when no domain to crawl is given.
	ErrNoDomain = errors.New("no domain specified: provide a base URL such as http://example.com")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid workers: must be between 1 and 64")

	// ErrInvalidDelay is returned when the request delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the body size cap is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unlimited)")

	// ErrInvalidCheckpoint is returned when the checkpoint interval is negative.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint interval: must be non-negative (0 disables checkpoints)")
)
