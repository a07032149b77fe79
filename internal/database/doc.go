// Package database stores the crawl history of pagewalk in SQLite.
//
// Every crawl is a run identified by a UUID. A run keeps the full result set
// it ended with: pages fetched during the run are inserted as they complete,
// and pages carried over from a resumed cache are added when the run
// finishes. Two runs of the same base URL can then be compared.
//
// The database is a single file (pagewalk.db) opened through the CGO-free
// modernc.org/sqlite driver with WAL enabled and a single connection.
package database
