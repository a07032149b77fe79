package scope

import (
	"errors"
	"slices"
	"testing"
)

func mustScope(t *testing.T, domain, basePath string, excludes []string, ignoreQuery bool) *Scope {
	t.Helper()
	s, err := New(domain, basePath, excludes, ignoreQuery)
	if err != nil {
		t.Fatalf("New(%q, %q) error = %v", domain, basePath, err)
	}
	return s
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("computes base url and trims trailing slash", func(t *testing.T) {
		t.Parallel()
		s := mustScope(t, "http://site.test/", "/docs/", nil, false)
		if s.Domain() != "http://site.test" {
			t.Errorf("Domain() = %q", s.Domain())
		}
		if s.BaseURL() != "http://site.test/docs/" {
			t.Errorf("BaseURL() = %q", s.BaseURL())
		}
	})

	t.Run("empty base path defaults to root", func(t *testing.T) {
		t.Parallel()
		s := mustScope(t, "https://site.test", "", nil, false)
		if s.BasePath() != "/" || s.BaseURL() != "https://site.test/" {
			t.Errorf("BasePath() = %q, BaseURL() = %q", s.BasePath(), s.BaseURL())
		}
	})

	t.Run("base path gains a leading slash", func(t *testing.T) {
		t.Parallel()
		s := mustScope(t, "https://site.test", "docs/", nil, false)
		if s.BasePath() != "/docs/" {
			t.Errorf("BasePath() = %q, want /docs/", s.BasePath())
		}
	})

	t.Run("exclusions are resolved against the domain", func(t *testing.T) {
		t.Parallel()
		s := mustScope(t, "http://site.test", "/", []string{"/admin", "private", " ", "http://site.test/tmp"}, false)
		want := []string{"http://site.test/admin", "http://site.test/private", "http://site.test/tmp"}
		if got := s.Excludes(); !slices.Equal(got, want) {
			t.Errorf("Excludes() = %v, want %v", got, want)
		}
	})

	t.Run("rejects invalid domains", func(t *testing.T) {
		t.Parallel()
		for _, d := range []string{"", "site.test", "ftp://site.test", "http://"} {
			if _, err := New(d, "/", nil, false); !errors.Is(err, ErrInvalidDomain) {
				t.Errorf("New(%q) error = %v, want ErrInvalidDomain", d, err)
			}
		}
	})

	t.Run("rejects domain with path", func(t *testing.T) {
		t.Parallel()
		if _, err := New("http://site.test/docs", "/", nil, false); !errors.Is(err, ErrDomainHasPath) {
			t.Errorf("New() error = %v, want ErrDomainHasPath", err)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	keep := mustScope(t, "http://x", "/base/", nil, false)
	strip := mustScope(t, "http://x", "/base/", nil, true)

	tests := []struct {
		name  string
		scope *Scope
		in    string
		want  string
	}{
		{"trims and drops fragment", keep, " http://x/base/a?x=1#frag ", "http://x/base/a?x=1"},
		{"strips query", strip, "http://x/base/a?x=1", "http://x/base/a"},
		{"other query collapses too", strip, "http://x/base/a?x=2", "http://x/base/a"},
		{"fragment before query", strip, "http://x/base/a#top?x=1", "http://x/base/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.scope.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAccept(t *testing.T) {
	t.Parallel()

	s := mustScope(t, "http://site.test", "/docs/", []string{"/docs/old"}, true)

	testCases := []struct {
		name string
		href string
		want string
		ok   bool
	}{
		{"base path href is prefixed", "/docs/a", "http://site.test/docs/a", true},
		{"absolute in scope", "http://site.test/docs/b", "http://site.test/docs/b", true},
		{"query stripped", "/docs/c?page=2", "http://site.test/docs/c", true},
		{"fragment stripped", "/docs/d#section", "http://site.test/docs/d", true},
		{"scheme relative", "//site.test/docs/e", "http://site.test/docs/e", true},
		{"other host", "https://other.test/x", "", false},
		{"outside base path", "/blog/post", "", false},
		{"excluded prefix", "/docs/old/page", "", false},
		{"excluded absolute", "http://site.test/docs/old", "", false},
		{"relative href dropped", "page.html", "", false},
		{"fragment only", "#top", "", false},
		{"mailto", "mailto:someone@site.test", "", false},
		{"javascript", "javascript:void(0)", "", false},
		{"empty", "  ", "", false},
		{"malformed", "http://site.test/docs/%zz", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := s.Accept(tc.href)
			if ok != tc.ok || got != tc.want {
				t.Errorf("Accept(%q) = %q, %v, want %q, %v", tc.href, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestResolveRedirect(t *testing.T) {
	t.Parallel()

	s := mustScope(t, "http://site.test", "/docs/", nil, false)

	tests := []struct {
		name     string
		location string
		from     string
		want     string
		ok       bool
	}{
		{"absolute path", "/docs/next", "http://site.test/docs/a", "http://site.test/docs/next", true},
		{"relative with fragment", "../c#frag", "http://site.test/docs/a/b", "http://site.test/docs/c", true},
		{"other host", "https://other.test/", "http://site.test/docs/a", "https://other.test/", true},
		{"empty", "", "http://site.test/docs/a", "", false},
		{"mailto", "mailto:x@y", "http://site.test/docs/a", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := s.ResolveRedirect(tt.from, tt.location)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ResolveRedirect(%q, %q) = %q, %v, want %q, %v", tt.from, tt.location, got, ok, tt.want, tt.ok)
			}
		})
	}

	if s.InScope("https://other.test/") {
		t.Error("InScope() accepted another host")
	}
}

func TestSeedURL(t *testing.T) {
	t.Parallel()

	s := mustScope(t, "http://x", "/base/", nil, false)
	noSlash := mustScope(t, "http://x", "/base", nil, true)

	tests := []struct {
		scope *Scope
		path  string
		want  string
	}{
		{s, "/a", "http://x/base/a"},
		{s, "b", "http://x/base/b"},
		{noSlash, "/a?q=1", "http://x/base/a"},
	}
	for _, tt := range tests {
		if got := tt.scope.SeedURL(tt.path); got != tt.want {
			t.Errorf("SeedURL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
