package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pagewalk/internal/cache"
	"github.com/nao1215/pagewalk/internal/config"
	"github.com/nao1215/pagewalk/internal/crawler"
	"github.com/nao1215/pagewalk/internal/log"
	"github.com/nao1215/pagewalk/internal/model"
)

// newTestSite serves a small site:
//
//	/     -> links to /a, /b, /old, /a?x=1, an external page and a fragment
//	/a    -> links back to /
//	/b    -> 404
//	/old  -> 301 to /a
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<a href="/a">a</a>
			<a href="/b">b</a>
			<a href="/old">old</a>
			<a href="/a?x=1">a with query</a>
			<a href="http://other.invalid/x">external</a>
			<a href="#top">top</a>
		</body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/">home</a>`)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusMovedPermanently)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readCache(t *testing.T, path string) []model.PageRecord {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read cache: %v", err)
	}
	var records []model.PageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("invalid cache file: %v", err)
	}
	return records
}

func TestCrawlCmd_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cacheDir := t.TempDir()
	dbDir := t.TempDir()
	baseURL := srv.URL + "/"

	out, err := executeCommand(t, "crawl", "--cache-dir", cacheDir, "--db-dir", dbDir, srv.URL)
	if err != nil {
		t.Fatalf("first crawl failed: %v", err)
	}
	for _, want := range []string{"Loaded from cache: 0", "New pages: 5", "Results written to " + cache.Path(cacheDir, baseURL)} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	records := readCache(t, cache.Path(cacheDir, baseURL))
	got := make(map[string]model.PageRecord, len(records))
	for _, rec := range records {
		got[strings.TrimPrefix(rec.URL, srv.URL)] = rec
	}
	want := map[string]int{"/": 200, "/a": 200, "/b": 404, "/old": 301, "/a?x=1": 200}
	if len(got) != len(want) {
		t.Fatalf("cached %d records, want %d: %v", len(got), len(want), records)
	}
	for path, status := range want {
		if got[path].Status != status {
			t.Errorf("%s status = %d, want %d", path, got[path].Status, status)
		}
	}
	if got["/old"].Location != "/a" || got["/old"].FinalLocation != srv.URL+"/a" {
		t.Errorf("redirect record = %+v", got["/old"])
	}

	// A second run resumes and fetches nothing new.
	out, err = executeCommand(t, "crawl", "--cache-dir", cacheDir, "--db-dir", dbDir, srv.URL)
	if err != nil {
		t.Fatalf("second crawl failed: %v", err)
	}
	if !strings.Contains(out, "Loaded from cache: 5") || !strings.Contains(out, "New pages: 0") {
		t.Errorf("resume output:\n%s", out)
	}

	out, err = executeCommand(t, "compare", "--db-dir", dbDir, "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if !strings.Contains(out, "No changes (5 pages unchanged)") {
		t.Errorf("compare output:\n%s", out)
	}

	out, err = executeCommand(t, "compare", "--db-dir", dbDir, "--list", "--base-url", baseURL)
	if err != nil {
		t.Fatalf("compare --list failed: %v", err)
	}
	if !strings.Contains(out, "(2)") {
		t.Errorf("expected two runs listed:\n%s", out)
	}
}

func TestCrawlCmd_Options(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)

	t.Run("ignore query and exclude", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		_, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir, "-q", "-e", "/b", srv.URL)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		records := readCache(t, cache.Path(cacheDir, srv.URL+"/"))
		for _, rec := range records {
			if strings.Contains(rec.URL, "?") {
				t.Errorf("query string kept: %s", rec.URL)
			}
			if strings.HasSuffix(rec.URL, "/b") {
				t.Errorf("excluded page fetched: %s", rec.URL)
			}
		}
		if len(records) != 3 {
			t.Errorf("got %d records, want 3: %v", len(records), records)
		}
	})

	t.Run("seed list", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		list := filepath.Join(t.TempDir(), "paths.json")
		if err := os.WriteFile(list, []byte(`["/a", "/old", "/missing"]`), 0600); err != nil {
			t.Fatal(err)
		}

		out, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir, "-l", list, srv.URL)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !strings.Contains(out, "New pages: 3") {
			t.Errorf("output:\n%s", out)
		}
		records := readCache(t, cache.ListPath(cacheDir, srv.URL+"/"))
		if len(records) != 3 {
			t.Errorf("seed-list mode followed links: %v", records)
		}
	})

	t.Run("seed list after discovery fetches every path", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		if _, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir, srv.URL); err != nil {
			t.Fatalf("discovery crawl failed: %v", err)
		}

		list := filepath.Join(t.TempDir(), "paths.json")
		if err := os.WriteFile(list, []byte(`["/a", "/b"]`), 0600); err != nil {
			t.Fatal(err)
		}
		out, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir, "-l", list, srv.URL)
		if err != nil {
			t.Fatalf("seed-list crawl failed: %v", err)
		}
		if !strings.Contains(out, "Loaded from cache: 0") || !strings.Contains(out, "New pages: 2") {
			t.Errorf("every listed path should be fetched again:\n%s", out)
		}
		if records := readCache(t, cache.ListPath(cacheDir, srv.URL+"/")); len(records) != 2 {
			t.Errorf("seed-list results = %v, want 2 records", records)
		}
		if records := readCache(t, cache.Path(cacheDir, srv.URL+"/")); len(records) != 5 {
			t.Errorf("discovery cache changed: %d records, want 5", len(records))
		}
	})

	t.Run("seed list that is not an array", func(t *testing.T) {
		t.Parallel()

		list := filepath.Join(t.TempDir(), "paths.json")
		if err := os.WriteFile(list, []byte("null"), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", t.TempDir(), "-l", list, srv.URL)
		if !errors.Is(err, cache.ErrSeedList) {
			t.Errorf("expected ErrSeedList, got %v", err)
		}
	})

	t.Run("unreadable seed list writes nothing", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		_, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir,
			"-l", filepath.Join(t.TempDir(), "missing.json"), srv.URL)
		if !errors.Is(err, cache.ErrSeedList) {
			t.Fatalf("expected ErrSeedList, got %v", err)
		}
		entries, _ := os.ReadDir(cacheDir)
		if len(entries) != 0 {
			t.Errorf("cache dir should be empty, got %d entries", len(entries))
		}
	})

	t.Run("timestamped output", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		if _, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir, "--timestamp", srv.URL); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		matches, _ := filepath.Glob(filepath.Join(cacheDir, "*-"+cache.Slug(srv.URL+"/")+".json"))
		if len(matches) != 1 {
			t.Errorf("expected one timestamped file, got %v", matches)
		}
	})

	t.Run("markdown report file", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		reportPath := filepath.Join(t.TempDir(), "out", "report.md")
		out, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", cacheDir, "-m", "-o", reportPath, srv.URL)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !strings.Contains(out, "New pages: 5") {
			t.Errorf("terminal summary missing:\n%s", out)
		}
		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "# Crawl Report") {
			t.Errorf("report file is not markdown:\n%s", data)
		}
	})

	t.Run("invalid domain", func(t *testing.T) {
		t.Parallel()

		if _, err := executeCommand(t, "crawl", "--no-history", "--cache-dir", t.TempDir(), "example.com/path"); err == nil {
			t.Error("expected an error for an invalid domain")
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		_, err := executeCommand(t, "crawl", "-j", "-m", srv.URL)
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags and config file", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), "pagewalk.yaml")
		content := `
sites:
  "http://example.com":
    excludePaths: ["/admin"]
    workers: 3
    delay: 250ms
`
		if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", cfgPath, "-b", "/docs", "-e", "/docs/api", "--timeout", "5s", "--no-final-location"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"http://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.BaseDomain != "http://example.com" || cfg.BasePath != "/docs" {
			t.Errorf("scope = %q %q", cfg.BaseDomain, cfg.BasePath)
		}
		if strings.Join(cfg.Excludes, ",") != "/docs/api,/admin" {
			t.Errorf("Excludes = %v", cfg.Excludes)
		}
		if cfg.Workers != 3 || cfg.Delay != 250*time.Millisecond {
			t.Errorf("site settings not applied: workers=%d delay=%v", cfg.Workers, cfg.Delay)
		}
		if cfg.Timeout != 5*time.Second || cfg.FinalLocation {
			t.Errorf("flags not applied: timeout=%v final=%v", cfg.Timeout, cfg.FinalLocation)
		}
	})

	t.Run("explicit flag beats file", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), "pagewalk.yaml")
		if err := os.WriteFile(cfgPath, []byte("defaults:\n  workers: 3\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", cfgPath, "-w", "2"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"http://example.com"})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Workers != 2 {
			t.Errorf("Workers = %d, want 2", cfg.Workers)
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
			t.Fatal(err)
		}
		_, err := buildConfig(cmd, []string{"http://example.com"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestRunCrawl_Interrupted(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)

	cfg := config.NewConfig()
	cfg.BaseDomain = srv.URL
	cfg.CacheDir = t.TempDir()
	cfg.DBDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runCrawl(ctx, cfg, log.NewLogger(io.Discard, false), io.Discard)
	if !errors.Is(err, crawler.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}

	// Partial results are saved even when nothing was fetched, and the
	// base URL stays pending for the next run.
	if records := readCache(t, cache.Path(cfg.CacheDir, srv.URL+"/")); len(records) != 0 {
		t.Errorf("expected an empty result file, got %v", records)
	}
	pending, err := cache.NewStore(cache.Path(cfg.CacheDir, srv.URL+"/")).LoadPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != srv.URL+"/" {
		t.Errorf("pending = %v, want [%s/]", pending, srv.URL)
	}
}

func TestRunCrawl_ResumeAfterInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first request for /b interrupts the crawl and hangs until the
	// client gives up.
	var interrupted atomic.Bool
	leaf := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<p>leaf</p>`)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>`)
	})
	mux.HandleFunc("/a", leaf)
	mux.HandleFunc("/c", leaf)
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		if interrupted.CompareAndSwap(false, true) {
			cancel()
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		leaf(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.BaseDomain = srv.URL
	cfg.CacheDir = t.TempDir()
	cfg.DBDir = t.TempDir()
	logger := log.NewLogger(io.Discard, false)
	store := cache.NewStore(cache.Path(cfg.CacheDir, srv.URL+"/"))

	err := runCrawl(ctx, cfg, logger, io.Discard)
	if !errors.Is(err, crawler.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if records := readCache(t, store.Path()); len(records) != 2 {
		t.Fatalf("interrupted run saved %v, want / and /a", records)
	}
	pending, err := store.LoadPending()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{srv.URL + "/b", srv.URL + "/c"}; strings.Join(pending, " ") != strings.Join(want, " ") {
		t.Fatalf("pending = %v, want %v", pending, want)
	}

	var out strings.Builder
	if err := runCrawl(context.Background(), cfg, logger, &out); err != nil {
		t.Fatalf("resumed crawl failed: %v", err)
	}
	if !strings.Contains(out.String(), "Loaded from cache: 2") || !strings.Contains(out.String(), "New pages: 2") {
		t.Errorf("resume output:\n%s", out.String())
	}
	if records := readCache(t, store.Path()); len(records) != 4 {
		t.Errorf("resumed run saved %d records, want 4: %v", len(records), records)
	}
	if _, err := os.Stat(store.PendingPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("pending file should be removed after a complete run, stat error = %v", err)
	}
}
