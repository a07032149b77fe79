package scope

import "errors"

var (
	// ErrInvalidDomain is returned when the base domain is not an absolute
	// http or https URL with a host.
	ErrInvalidDomain = errors.New("invalid base domain: must be an absolute http(s) URL such as https://example.com")

	// ErrDomainHasPath is returned when the base domain carries a path.
	// The path belongs in the base path instead.
	ErrDomainHasPath = errors.New("invalid base domain: must not contain a path, use the base path option")
)
