package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/pagewalk/internal/model"
)

// Writer renders crawl summaries and comparisons.
type Writer interface {
	// WriteCrawl outputs a crawl summary.
	WriteCrawl(s *CrawlSummary) (int, error)

	// WriteDiff outputs a comparison of two runs.
	WriteDiff(d *DiffSummary) (int, error)
}

// MultiWriter writes to several Writers in order, e.g. a Markdown file and
// the terminal summary.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteCrawl writes s to every writer and stops on the first error.
func (m *MultiWriter) WriteCrawl(s *CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteCrawl(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff writes d to every writer and stops on the first error.
func (m *MultiWriter) WriteDiff(d *DiffSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(d)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText renders a status code, "-" for unreachable.
func statusText(code int) string {
	if code == model.StatusUnreachable {
		return "-"
	}
	return strconv.Itoa(code)
}

// recordLine is the one-line form of a record: "url - status - location".
func recordLine(rec model.PageRecord) string {
	if rec.Location != "" {
		return fmt.Sprintf("%s - %s - %s", rec.URL, statusText(rec.Status), rec.Location)
	}
	return fmt.Sprintf("%s - %s", rec.URL, statusText(rec.Status))
}

// changeText renders the status, and the location of a redirect.
func changeText(rec model.PageRecord) string {
	if rec.Location != "" {
		return statusText(rec.Status) + " " + rec.Location
	}
	return statusText(rec.Status)
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
