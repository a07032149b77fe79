package model

import (
	"errors"
	"testing"
)

func TestResultSetAppend(t *testing.T) {
	t.Parallel()

	t.Run("appends unique records in insertion order", func(t *testing.T) {
		t.Parallel()

		rs := NewResultSet()
		for _, u := range []string{"http://x/b", "http://x/a", "http://x/c"} {
			if err := rs.Append(PageRecord{URL: u, Status: 200}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if rs.Len() != 3 {
			t.Fatalf("expected 3 records, got %d", rs.Len())
		}
		got := rs.Records()
		if got[0].URL != "http://x/b" || got[2].URL != "http://x/c" {
			t.Errorf("insertion order not kept: %+v", got)
		}
	})

	t.Run("rejects duplicate url", func(t *testing.T) {
		t.Parallel()

		rs := NewResultSet()
		if err := rs.Append(PageRecord{URL: "http://x/a", Status: 200}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := rs.Append(PageRecord{URL: "http://x/a", Status: 404})
		if !errors.Is(err, ErrDuplicateRecord) {
			t.Fatalf("expected ErrDuplicateRecord, got %v", err)
		}

		rec, _ := rs.Get("http://x/a")
		if rec.Status != 200 {
			t.Errorf("original record was mutated: %+v", rec)
		}
	})

	t.Run("rejects empty url", func(t *testing.T) {
		t.Parallel()

		if err := NewResultSet().Append(PageRecord{Status: 200}); err == nil {
			t.Error("expected error for empty url")
		}
	})
}

func TestResultSetSorted(t *testing.T) {
	t.Parallel()

	rs := NewResultSet()
	for _, u := range []string{"http://x/docs/index", "http://x/docs/a", "http://x/docs/B", "http://x/docs/a?x=1"} {
		if err := rs.Append(PageRecord{URL: u, Status: 200}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sorted := rs.Sorted()
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].URL > sorted[i].URL {
			t.Errorf("records not sorted at %d: %q > %q", i, sorted[i-1].URL, sorted[i].URL)
		}
	}
	// ordinal comparison places upper case first
	if sorted[0].URL != "http://x/docs/B" {
		t.Errorf("expected ordinal ordering, got first %q", sorted[0].URL)
	}

	// Sorted must not reorder the underlying set
	if rs.Records()[0].URL != "http://x/docs/index" {
		t.Error("Sorted mutated insertion order")
	}
}

func TestNewResultSetFrom(t *testing.T) {
	t.Parallel()

	rs, dropped := NewResultSetFrom([]PageRecord{
		{URL: "http://x/a", Status: 200},
		{URL: "http://x/a", Status: 500},
		{URL: "http://x/b", Status: 302, Location: "/c"},
	})

	if dropped != 1 {
		t.Errorf("expected 1 dropped record, got %d", dropped)
	}
	if rs.Len() != 2 {
		t.Errorf("expected 2 records, got %d", rs.Len())
	}
	if rec, _ := rs.Get("http://x/a"); rec.Status != 200 {
		t.Errorf("expected first record to win, got %+v", rec)
	}
}

func TestResultSetClone(t *testing.T) {
	t.Parallel()

	rs := NewResultSet()
	_ = rs.Append(PageRecord{URL: "http://x/a", Status: 200})

	c := rs.Clone()
	_ = c.Append(PageRecord{URL: "http://x/b", Status: 200})

	if rs.Contains("http://x/b") {
		t.Error("clone shares state with original")
	}
	if !c.Contains("http://x/a") {
		t.Error("clone lost original records")
	}
}
