package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrDuplicateRecord is returned by ResultSet.Append when a record for the
// same URL is already present.
var ErrDuplicateRecord = errors.New("duplicate page record")

// ResultSet is an insertion-ordered, append-only collection of PageRecords
// keyed by URL. At most one record exists per URL.
//
// ResultSet is not safe for concurrent use; crawler.Registry serializes
// access to the set it owns.
type ResultSet struct {
	records []PageRecord
	index   map[string]int
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{index: make(map[string]int)}
}

// NewResultSetFrom builds a ResultSet from records, keeping the first record
// seen for every URL. Later duplicates are dropped and counted.
func NewResultSetFrom(records []PageRecord) (*ResultSet, int) {
	rs := NewResultSet()
	dropped := 0
	for _, rec := range records {
		if err := rs.Append(rec); err != nil {
			dropped++
		}
	}
	return rs, dropped
}

// Append adds rec to the set.
func (rs *ResultSet) Append(rec PageRecord) error {
	if rec.URL == "" {
		return errors.New("page record has empty url")
	}
	if _, ok := rs.index[rec.URL]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.URL)
	}
	rs.index[rec.URL] = len(rs.records)
	rs.records = append(rs.records, rec)
	return nil
}

// Contains reports whether a record for url exists.
func (rs *ResultSet) Contains(url string) bool {
	_, ok := rs.index[url]
	return ok
}

// Get returns the record for url.
func (rs *ResultSet) Get(url string) (PageRecord, bool) {
	i, ok := rs.index[url]
	if !ok {
		return PageRecord{}, false
	}
	return rs.records[i], true
}

// Len returns the number of records.
func (rs *ResultSet) Len() int {
	return len(rs.records)
}

// Records returns a copy of the records in insertion order.
func (rs *ResultSet) Records() []PageRecord {
	return slices.Clone(rs.records)
}

// Sorted returns a copy of the records ordered by URL using ordinal
// string comparison.
func (rs *ResultSet) Sorted() []PageRecord {
	out := slices.Clone(rs.records)
	slices.SortFunc(out, func(a, b PageRecord) int {
		return strings.Compare(a.URL, b.URL)
	})
	return out
}

// Clone returns an independent copy of the set.
func (rs *ResultSet) Clone() *ResultSet {
	c := &ResultSet{
		records: slices.Clone(rs.records),
		index:   make(map[string]int, len(rs.index)),
	}
	for k, v := range rs.index {
		c.index[k] = v
	}
	return c
}
