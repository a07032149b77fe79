package scope

import (
	"fmt"
	"net/url"
	"strings"
)

// unfollowableSchemes are href schemes that never point at a crawlable page.
var unfollowableSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "ftp:"}

// Scope is the immutable crawl boundary.
type Scope struct {
	domain      string
	scheme      string
	basePath    string
	baseURL     string
	excludes    []string
	ignoreQuery bool
}

// New builds a Scope.
//
// The domain loses any trailing slash and must be an absolute http(s) URL
// without a path. An empty basePath means "/". Exclusion paths starting with
// "/" are resolved against the domain; absolute exclusion URLs are kept as is.
func New(domain, basePath string, excludes []string, ignoreQuery bool) (*Scope, error) {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	u, err := url.Parse(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: %q", ErrDomainHasPath, domain)
	}

	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		basePath = "/"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	s := &Scope{
		domain:      domain,
		scheme:      u.Scheme,
		basePath:    basePath,
		baseURL:     domain + basePath,
		ignoreQuery: ignoreQuery,
	}

	for _, ex := range excludes {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}
		if isAbsoluteHTTP(ex) {
			s.excludes = append(s.excludes, ex)
			continue
		}
		if !strings.HasPrefix(ex, "/") {
			ex = "/" + ex
		}
		s.excludes = append(s.excludes, domain+ex)
	}

	return s, nil
}

// Domain returns the base domain, e.g. "https://example.com".
func (s *Scope) Domain() string { return s.domain }

// BasePath returns the base path, always starting with "/".
func (s *Scope) BasePath() string { return s.basePath }

// BaseURL returns domain + base path.
func (s *Scope) BaseURL() string { return s.baseURL }

// IgnoreQuery reports whether query strings are stripped.
func (s *Scope) IgnoreQuery() bool { return s.ignoreQuery }

// Excludes returns the absolute exclusion prefixes.
func (s *Scope) Excludes() []string {
	out := make([]string, len(s.excludes))
	copy(out, s.excludes)
	return out
}

// Normalize returns the canonical form of an absolute URL: surrounding
// whitespace and the fragment are removed, and with query stripping enabled
// everything from the first "?" is dropped.
func (s *Scope) Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if s.ignoreQuery {
		if i := strings.IndexByte(u, '?'); i >= 0 {
			u = u[:i]
		}
	}
	return u
}

// Resolve turns an href found in a page into an absolute URL.
// Hrefs starting with the base path are prefixed with the domain and
// scheme-relative hrefs take the domain's scheme. Any other href must
// already be an absolute http(s) URL; the rest are rejected.
func (s *Scope) Resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range unfollowableSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	switch {
	case strings.HasPrefix(href, "//"):
		return s.scheme + ":" + href, true
	case strings.HasPrefix(href, s.basePath):
		return s.domain + href, true
	case isAbsoluteHTTP(href):
		return href, true
	default:
		return "", false
	}
}

// Accept resolves and normalizes href and reports whether the result is in
// scope. The returned URL is the one to register, fetch and persist.
func (s *Scope) Accept(href string) (string, bool) {
	abs, ok := s.Resolve(href)
	if !ok {
		return "", false
	}
	u := s.Normalize(abs)
	if !s.InScope(u) {
		return "", false
	}
	return u, true
}

// InScope reports whether an already normalized absolute URL starts with the
// base URL and with none of the exclusion prefixes.
func (s *Scope) InScope(u string) bool {
	if _, err := url.Parse(u); err != nil {
		return false
	}
	if !strings.HasPrefix(u, s.baseURL) {
		return false
	}
	for _, ex := range s.excludes {
		if strings.HasPrefix(u, ex) {
			return false
		}
	}
	return true
}

// ResolveRedirect resolves a raw Location header against the URL that
// returned it and normalizes the result. It does not check the scope.
func (s *Scope) ResolveRedirect(from, location string) (string, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}
	base, err := url.Parse(from)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", false
	}
	target := base.ResolveReference(ref)
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", false
	}
	return s.Normalize(target.String()), true
}

// SeedURL turns a seed-list path into an absolute URL under the base URL.
// The leading slash of path is dropped before joining.
func (s *Scope) SeedURL(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	base := s.baseURL
	if !strings.HasSuffix(base, "/") && path != "" {
		base += "/"
	}
	return s.Normalize(base + path)
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
