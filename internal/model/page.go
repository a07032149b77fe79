package model

import "net/http"

// StatusUnreachable is the status persisted for a fetch that produced no
// HTTP response at all (DNS failure, refused connection, timeout). A 200
// whose body cannot be read keeps its status. It never collides with a real
// HTTP status code.
const StatusUnreachable = 0

// PageRecord is the outcome of fetching a single URL.
// A record is immutable once it has been appended to a ResultSet.
type PageRecord struct {
	// URL is the normalized URL that was fetched.
	URL string `json:"url"`

	// Status is the HTTP status code, or StatusUnreachable.
	Status int `json:"status"`

	// Location is the raw Location header value. Set only for redirects.
	Location string `json:"location,omitempty"`

	// FinalLocation is where a fully-following request for URL landed.
	// Set only for redirects and purely informational.
	FinalLocation string `json:"finalLocation,omitempty"`
}

// IsRedirect reports whether the record describes a redirect response.
func (p PageRecord) IsRedirect() bool {
	return IsRedirectStatus(p.Status) && p.Location != ""
}

// IsOK reports whether the page was fetched with status 200.
func (p PageRecord) IsOK() bool {
	return p.Status == http.StatusOK
}

// IsUnreachable reports whether the fetch failed below the HTTP layer.
func (p PageRecord) IsUnreachable() bool {
	return p.Status == StatusUnreachable
}

// IsRedirectStatus reports whether code is one of the redirect statuses the
// crawler follows itself: 301, 302, 303, 307 and 308.
func IsRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}
