package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/pagewalk/internal/model"
)

func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database file", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "nested", "history")
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close()

		if db.Path() != filepath.Join(dir, FileName) {
			t.Errorf("Path() = %q, want %q", db.Path(), filepath.Join(dir, FileName))
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("Open() should fail when the database does not exist")
		}
	})

	t.Run("reopen keeps runs", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		run, err := db.StartRun(context.Background(), "http://example.com", ModeDiscover, "")
		if err != nil {
			t.Fatalf("StartRun() error = %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer db.Close()

		got, err := db.GetRun(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got.BaseURL != "http://example.com" {
			t.Errorf("BaseURL = %q", got.BaseURL)
		}
	})
}

func TestHistoryDB_RunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	run, err := db.StartRun(ctx, "http://example.com", ModeDiscover, "/tmp/out.json")
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if len(run.ID) != 36 {
		t.Errorf("run id %q is not a UUID", run.ID)
	}

	fetched := []model.PageRecord{
		{URL: "http://example.com/a", Status: 200},
		{URL: "http://example.com/b", Status: 301, Location: "/c", FinalLocation: "http://example.com/c"},
		{URL: "http://example.com/d", Status: model.StatusUnreachable},
	}
	for _, rec := range fetched {
		detail := PageDetail{}
		if rec.IsUnreachable() {
			detail.Error = "connection refused"
		}
		if err := db.InsertPage(ctx, run.ID, rec, detail); err != nil {
			t.Fatalf("InsertPage(%s) error = %v", rec.URL, err)
		}
	}

	// The final set also holds a page loaded from the cache.
	final := model.NewResultSet()
	for _, rec := range fetched {
		if err := final.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := final.Append(model.PageRecord{URL: "http://example.com/", Status: 200}); err != nil {
		t.Fatal(err)
	}

	if err := db.FinishRun(ctx, run.ID, final, len(fetched), true); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.Finished() {
		t.Error("run should be finished")
	}
	if got.PageCount != 4 || got.FetchedCount != 3 {
		t.Errorf("counts = %d/%d, want 4/3", got.PageCount, got.FetchedCount)
	}
	if !got.Interrupted {
		t.Error("run should be marked interrupted")
	}
	if got.OutputPath != "/tmp/out.json" {
		t.Errorf("OutputPath = %q", got.OutputPath)
	}

	pages, err := db.RunPages(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunPages() error = %v", err)
	}
	if pages.Len() != 4 {
		t.Fatalf("RunPages() len = %d, want 4", pages.Len())
	}
	rec, ok := pages.Get("http://example.com/b")
	if !ok {
		t.Fatal("redirect record missing")
	}
	if rec.Location != "/c" || rec.FinalLocation != "http://example.com/c" {
		t.Errorf("redirect record = %+v", rec)
	}

	errs, err := db.PageErrors(ctx, run.ID)
	if err != nil {
		t.Fatalf("PageErrors() error = %v", err)
	}
	if errs["http://example.com/d"] != "connection refused" || len(errs) != 1 {
		t.Errorf("PageErrors() = %v", errs)
	}
}

func TestHistoryDB_InsertPageUpsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	run, err := db.StartRun(ctx, "http://example.com", ModeSeedList, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := db.InsertPage(ctx, run.ID, model.PageRecord{URL: "http://example.com/x", Status: 500}, PageDetail{}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertPage(ctx, run.ID, model.PageRecord{URL: "http://example.com/x", Status: 200}, PageDetail{ContentHash: "abc"}); err != nil {
		t.Fatal(err)
	}

	pages, err := db.RunPages(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pages.Len() != 1 {
		t.Fatalf("len = %d, want 1", pages.Len())
	}
	if rec, _ := pages.Get("http://example.com/x"); rec.Status != 200 {
		t.Errorf("status = %d, want 200", rec.Status)
	}
}

func TestHistoryDB_FinishRunKeepsFetchedRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	run, err := db.StartRun(ctx, "http://example.com", ModeDiscover, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InsertPage(ctx, run.ID, model.PageRecord{URL: "http://example.com/", Status: 404}, PageDetail{}); err != nil {
		t.Fatal(err)
	}

	final, _ := model.NewResultSetFrom([]model.PageRecord{{URL: "http://example.com/", Status: 200}})
	if err := db.FinishRun(ctx, run.ID, final, 1, false); err != nil {
		t.Fatal(err)
	}

	pages, err := db.RunPages(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec, _ := pages.Get("http://example.com/"); rec.Status != 404 {
		t.Errorf("status = %d, want the fetched 404", rec.Status)
	}
}

func TestHistoryDB_FinishRunUnknown(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	err := db.FinishRun(context.Background(), "missing", model.NewResultSet(), 0, false)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestHistoryDB_GetRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	run, err := db.StartRun(ctx, "http://example.com", ModeDiscover, "")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("by prefix", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetRun(ctx, run.ShortID())
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got.ID != run.ID {
			t.Errorf("GetRun() id = %q, want %q", got.ID, run.ID)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		_, err := db.GetRun(ctx, "zzzzzzzz")
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("wildcards match literally", func(t *testing.T) {
		t.Parallel()

		for _, id := range []string{"%", "_", run.ID[:2] + "%", "________", ""} {
			_, err := db.GetRun(ctx, id)
			if !errors.Is(err, ErrRunNotFound) {
				t.Errorf("GetRun(%q) error = %v, want ErrRunNotFound", id, err)
			}
		}
	})
}

func TestHistoryDB_ListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	var ids []string
	for _, base := range []string{"http://a.example", "http://b.example", "http://a.example"} {
		run, err := db.StartRun(ctx, base, ModeDiscover, "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	t.Run("by base url newest first", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "http://a.example")
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 2 {
			t.Fatalf("len = %d, want 2", len(runs))
		}
		if runs[0].ID != ids[2] || runs[1].ID != ids[0] {
			t.Errorf("order = [%s %s], want [%s %s]", runs[0].ID, runs[1].ID, ids[2], ids[0])
		}
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 3 {
			t.Errorf("len = %d, want 3", len(runs))
		}
	})

	t.Run("latest", func(t *testing.T) {
		t.Parallel()

		runs, err := db.LatestRuns(ctx, "http://a.example", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != ids[2] {
			t.Errorf("LatestRuns() = %+v", runs)
		}
	})

	t.Run("base urls", func(t *testing.T) {
		t.Parallel()

		urls, err := db.ListBaseURLs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(urls) != 2 || urls[0] != "http://a.example" || urls[1] != "http://b.example" {
			t.Errorf("ListBaseURLs() = %v", urls)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "stored layout", input: "2026-01-02 03:04:05.123456"},
		{name: "sqlite default", input: "2026-01-02 03:04:05"},
		{name: "rfc3339", input: "2026-01-02T03:04:05+09:00"},
		{name: "garbage", input: "yesterday", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
			}
		})
	}
}
