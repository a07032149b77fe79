// Package report renders crawl summaries and run comparisons.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured output for other tools
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a mermaid
//     pie chart of the status distribution
//
// All writers implement Writer and can be combined with MultiWriter.
package report
