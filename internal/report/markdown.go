package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pagewalk/internal/model"
)

// maxMarkdownRows caps page tables so reports of large sites stay readable.
const maxMarkdownRows = 200

// MarkdownWriter outputs GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
	title cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
}

// WriteCrawl writes the crawl summary.
func (w *MarkdownWriter) WriteCrawl(s *CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Base URL", "`" + s.BaseURL + "`"},
		{"Mode", s.Mode},
		{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", s.Stats.Duration.Round(time.Millisecond).String()},
		{"Loaded from cache", strconv.Itoa(s.LoadedFromCache)},
		{"New pages", strconv.Itoa(s.NewPages)},
		{"Total pages", strconv.Itoa(s.TotalPages)},
		{"Results", "`" + s.OutputPath + "`"},
	}
	if s.Pending > 0 {
		rows = append(rows, []string{"Pending pages", strconv.Itoa(s.Pending)})
	}
	if s.RunID != "" {
		rows = append(rows, []string{"Run", "`" + s.RunID + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	w.writeStatus(md, s)
	w.writeAlert(md, s)

	if len(s.Failures) > 0 {
		md.H2("Failed Pages")
		md.PlainText("")
		w.writeRecords(md, s.Failures)
	}

	if len(s.Pages) > 0 {
		md.H2("New Pages")
		md.PlainText("")
		w.writeRecords(md, s.Pages)
	}

	w.writeFooter(md, s.Version)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, s *CrawlSummary) {
	counts := s.classCounts()
	if len(counts) == 0 {
		return
	}

	md.H2("Status Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{w.label(c.class), strconv.Itoa(c.count)})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.TotalPages) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Status", "Pages"}, Rows: rows})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Status Distribution"),
		piechart.WithShowData(true),
	)
	for _, c := range counts {
		chart.LabelAndIntValue(w.label(c.class), uint64(c.count)) //nolint:gosec // counts are non-negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *CrawlSummary) {
	switch {
	case s.Interrupted():
		md.Warningf("The crawl was interrupted. %d page(s) were saved and the next run resumes with %d pending page(s).", s.TotalPages, s.Pending)
	case s.Stats.LimitReached:
		md.Importantf("The page limit stopped the crawl after %d fetch(es).", s.Stats.Fetched)
	case len(s.Failures) > 0:
		md.Note(fmt.Sprintf("%d page(s) failed or returned an error status.", len(s.Failures)))
	default:
		md.Tip("Every new page was fetched without errors.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, records []model.PageRecord) {
	shown := records
	if len(shown) > maxMarkdownRows {
		shown = shown[:maxMarkdownRows]
	}

	rows := make([][]string, len(shown))
	for i, rec := range shown {
		location := rec.Location
		if location == "" {
			location = "-"
		}
		rows[i] = []string{truncateString(rec.URL, 80), statusText(rec.Status), truncateString(location, 60)}
	}
	md.Table(markdown.TableSet{Header: []string{"URL", "Status", "Location"}, Rows: rows})
	md.PlainText("")

	if len(records) > len(shown) {
		md.PlainTextf("%d more page(s) omitted.", len(records)-len(shown))
		md.PlainText("")
	}
}

// WriteDiff writes the comparison with one table per kind of change.
func (w *MarkdownWriter) WriteDiff(d *DiffSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"", "Run", "Pages"},
		Rows: [][]string{
			{"Old", "`" + d.OldLabel + "`", strconv.Itoa(d.OldCount)},
			{"New", "`" + d.NewLabel + "`", strconv.Itoa(d.NewCount)},
		},
	})
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Change", "Pages"},
		Rows: [][]string{
			{"Added", strconv.Itoa(len(d.Diff.Added))},
			{"Removed", strconv.Itoa(len(d.Diff.Removed))},
			{"Changed", strconv.Itoa(len(d.Diff.Changed))},
			{"Unchanged", strconv.Itoa(d.Diff.Unchanged)},
		},
	})
	md.PlainText("")

	if !d.Diff.HasChanges() {
		md.Tip("No differences between the two runs.")
		md.PlainText("")
		w.writeFooter(md, d.Version)
		return len(md.String()), md.Build()
	}

	if len(d.Diff.Added) > 0 {
		md.PlainText("### Added")
		md.PlainText("")
		w.writeRecords(md, d.Diff.Added)
	}
	if len(d.Diff.Removed) > 0 {
		md.PlainText("### Removed")
		md.PlainText("")
		w.writeRecords(md, d.Diff.Removed)
	}
	if len(d.Diff.Changed) > 0 {
		md.PlainText("### Changed")
		md.PlainText("")
		rows := make([][]string, len(d.Diff.Changed))
		for i, c := range d.Diff.Changed {
			rows[i] = []string{truncateString(c.URL, 80), changeText(c.Before), changeText(c.After)}
		}
		md.Table(markdown.TableSet{Header: []string{"URL", "Before", "After"}, Rows: rows})
		md.PlainText("")
	}

	w.writeFooter(md, d.Version)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) label(c model.StatusClass) string {
	return w.title.String(c.String())
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown, version string) {
	md.HorizontalRule()
	md.PlainText("")
	if version != "" {
		md.PlainTextf("*Generated by [pagewalk](https://github.com/nao1215/pagewalk) %s*", version)
		return
	}
	md.PlainText("*Generated by [pagewalk](https://github.com/nao1215/pagewalk)*")
}
