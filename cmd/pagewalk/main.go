// Package main provides the entry point for the pagewalk CLI.
//
// pagewalk crawls one site, bounded to a base path, and records the HTTP
// status of every page it reaches. Results are cached per base URL so an
// interrupted crawl resumes where it stopped, and every run is kept in a
// local history for comparison.
//
// Usage:
//
//	pagewalk crawl http://example.com
//	pagewalk crawl --list paths.json http://example.com
//	pagewalk compare --base-url http://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
