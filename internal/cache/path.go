package cache

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// StampLayout is the time layout prefixed to run-stamped file names.
const StampLayout = "20060102-150405"

var (
	schemePattern  = regexp.MustCompile(`^https?://`)
	nonWordPattern = regexp.MustCompile(`\W+`)
)

// Slug turns a base URL into a file-system safe name: the scheme is removed,
// every run of non-word characters becomes "-" and leading or trailing
// dashes are trimmed. "https://site.test/docs/" becomes "site-test-docs".
func Slug(baseURL string) string {
	s := schemePattern.ReplaceAllString(baseURL, "")
	s = nonWordPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "root"
	}
	return s
}

// Path returns the resumable cache file for baseURL inside dir.
func Path(dir, baseURL string) string {
	return filepath.Join(dir, Slug(baseURL)+".json")
}

// ListPath returns the result file of seed-list runs for baseURL inside dir.
// It is kept apart from the discovery cache so that re-checking a list
// neither skips known pages nor rewrites the discovery results.
func ListPath(dir, baseURL string) string {
	return filepath.Join(dir, Slug(baseURL)+"-list.json")
}

// StampedPath returns a run-stamped file name for baseURL inside dir.
func StampedPath(dir, baseURL string, t time.Time) string {
	return filepath.Join(dir, t.Format(StampLayout)+"-"+Slug(baseURL)+".json")
}
