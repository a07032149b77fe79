package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page fetched by the run.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every new page, not only failures.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteCrawl writes the crawl summary. The three lines "Loaded from cache",
// "New pages" and "Results written to" are always present.
func (w *SimpleWriter) WriteCrawl(s *CrawlSummary) (int, error) {
	var sb strings.Builder

	if w.verbose {
		for _, rec := range s.Pages {
			sb.WriteString(recordLine(rec))
			sb.WriteString("\n")
		}
		if len(s.Pages) > 0 {
			sb.WriteString("\n")
		}
	}

	if len(s.Failures) > 0 {
		fmt.Fprintf(&sb, "Failed pages (%d):\n", len(s.Failures))
		for _, rec := range s.Failures {
			fmt.Fprintf(&sb, "  %s\n", recordLine(rec))
		}
		sb.WriteString("\n")
	}

	if counts := s.classCounts(); len(counts) > 0 {
		parts := make([]string, 0, len(counts))
		for _, c := range counts {
			parts = append(parts, fmt.Sprintf("%s %d", c.class, c.count))
		}
		fmt.Fprintf(&sb, "Status: %s\n", strings.Join(parts, ", "))
	}
	if s.Stats.LimitReached {
		sb.WriteString("Page limit reached; the crawl is incomplete.\n")
	}
	if s.Interrupted() {
		sb.WriteString("Interrupted; partial results were saved.\n")
	}
	if s.Pending > 0 {
		fmt.Fprintf(&sb, "Pending pages: %d (run again to resume)\n", s.Pending)
	}

	fmt.Fprintf(&sb, "Loaded from cache: %d\n", s.LoadedFromCache)
	fmt.Fprintf(&sb, "New pages: %d\n", s.NewPages)
	fmt.Fprintf(&sb, "Results written to %s\n", s.OutputPath)

	return io.WriteString(w.output, sb.String())
}

// WriteDiff writes one line per added (+), removed (-) and changed (~) URL.
func (w *SimpleWriter) WriteDiff(d *DiffSummary) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Comparing %s (%d pages) -> %s (%d pages)\n\n", d.OldLabel, d.OldCount, d.NewLabel, d.NewCount)

	if !d.Diff.HasChanges() {
		fmt.Fprintf(&sb, "No changes (%d pages unchanged)\n", d.Diff.Unchanged)
		return io.WriteString(w.output, sb.String())
	}

	for _, rec := range d.Diff.Added {
		fmt.Fprintf(&sb, "+ %s\n", recordLine(rec))
	}
	for _, rec := range d.Diff.Removed {
		fmt.Fprintf(&sb, "- %s\n", recordLine(rec))
	}
	for _, c := range d.Diff.Changed {
		fmt.Fprintf(&sb, "~ %s: %s -> %s\n", c.URL, changeText(c.Before), changeText(c.After))
	}

	fmt.Fprintf(&sb, "\nAdded: %d, Removed: %d, Changed: %d, Unchanged: %d\n",
		len(d.Diff.Added), len(d.Diff.Removed), len(d.Diff.Changed), d.Diff.Unchanged)

	return io.WriteString(w.output, sb.String())
}
