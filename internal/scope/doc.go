// Package scope decides which URLs belong to a crawl.
//
// A Scope is built once from the base domain, the base path and the list of
// excluded paths, and is read-only afterwards. It is the single place where
// URLs are normalized, so the crawler, the fetcher and the cache all see the
// same form of every URL:
//
//	s, err := scope.New("http://site.test", "/docs/", []string{"/docs/old"}, true)
//	u, ok := s.Accept("/docs/a?page=2#top") // "http://site.test/docs/a", true
package scope
