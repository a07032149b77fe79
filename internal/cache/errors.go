package cache

import "errors"

var (
	// ErrCorrupt is reported when a cache file exists but cannot be decoded.
	// Load treats it as "no prior state".
	ErrCorrupt = errors.New("cache file is corrupt")

	// ErrPersist is returned when results cannot be written.
	ErrPersist = errors.New("failed to persist results")

	// ErrSeedList is returned when a seed-list file cannot be read or decoded.
	ErrSeedList = errors.New("failed to read seed list")
)
