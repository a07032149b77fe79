// Package cache persists crawl results as a sorted JSON array and loads them
// back for resumption.
//
// The file for a scope is derived from its base URL, so repeated crawls of
// the same scope read and update the same file. Run-stamped files carry the
// start time in their name and are never loaded.
package cache
