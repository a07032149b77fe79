// Package model defines the data structures shared by the crawler,
// persistence, history and report packages.
//
// The main types are:
//   - PageRecord: the outcome of fetching one URL
//   - ResultSet: an insertion-ordered, append-only collection of PageRecords
//   - StatusClass: a coarse grouping of HTTP statuses used for summaries
//   - Diff: the comparison of two result sets
//
// Models live in their own package so that crawler, cache, database and
// report can all depend on them without import cycles. PageRecord is the
// persisted JSON shape of the cache file and its field names must stay stable.
package model
