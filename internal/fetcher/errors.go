package fetcher

import "errors"

// Fetch failure classes. An Outcome's Err wraps exactly one of these.
var (
	// ErrUnreachable is returned when no HTTP response was received,
	// e.g. DNS failure or connection refused.
	ErrUnreachable = errors.New("host unreachable")

	// ErrTimeout is returned when the per-fetch timeout expired.
	ErrTimeout = errors.New("fetch timed out")

	// ErrCanceled is returned when the crawl was stopped while the fetch
	// was in flight.
	ErrCanceled = errors.New("fetch canceled")

	// ErrInvalidURL is returned when a request cannot be built for the URL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrBody is returned when a 200 response body could not be read.
	ErrBody = errors.New("failed to read response body")

	// ErrInvalidProxy is returned when the proxy address cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy address: expected host:port, socks5://host:port or http://host:port")
)
