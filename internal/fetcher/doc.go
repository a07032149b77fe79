// Package fetcher performs the HTTP requests of a crawl.
//
// HTTPFetcher issues a single GET per URL with redirect following turned off,
// so the crawler observes every 3xx itself. Network failures and timeouts are
// reported as an Outcome with model.StatusUnreachable and a non-nil Err,
// never as a Go error: a failed page is data, not a crawl failure.
//
// NewHTTPClient builds the shared transport: an optional SOCKS5 or HTTP proxy
// and injection of site-specific cookies and headers. Cookies set by the
// site are not stored.
package fetcher
