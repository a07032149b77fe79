package report

import (
	"time"

	"github.com/nao1215/pagewalk/internal/crawler"
	"github.com/nao1215/pagewalk/internal/model"
)

// CrawlSummary is the outcome of one crawl as shown to the user.
type CrawlSummary struct {
	Version    string    `json:"version"`
	BaseURL    string    `json:"baseUrl"`
	Mode       string    `json:"mode"`
	RunID      string    `json:"runId,omitempty"`
	OutputPath string    `json:"outputPath"`
	StartedAt  time.Time `json:"startedAt"`

	// LoadedFromCache is the number of records resumed from a prior run.
	LoadedFromCache int `json:"loadedFromCache"`

	// NewPages is the number of records added by this run.
	NewPages int `json:"newPages"`

	// TotalPages is the size of the saved result set.
	TotalPages int `json:"totalPages"`

	// Pending is the number of URLs left for the next run to resume.
	Pending int `json:"pending"`

	Stats crawler.Stats `json:"stats"`

	// StatusCounts tallies the saved result set by status class name.
	StatusCounts map[string]int `json:"statusCounts"`

	// Failures are new records with an error status or no response.
	Failures []model.PageRecord `json:"failures,omitempty"`

	// Pages are the records added by this run, in crawl order.
	Pages []model.PageRecord `json:"pages,omitempty"`
}

// NewCrawlSummary builds a summary from the final result set. The first
// loaded records of results are the ones resumed from the cache.
func NewCrawlSummary(baseURL string, loaded int, results *model.ResultSet, stats crawler.Stats) *CrawlSummary {
	records := results.Records()
	if loaded > len(records) {
		loaded = len(records)
	}
	fresh := records[loaded:]

	s := &CrawlSummary{
		BaseURL:         baseURL,
		LoadedFromCache: loaded,
		NewPages:        len(fresh),
		TotalPages:      len(records),
		Stats:           stats,
		StatusCounts:    make(map[string]int),
		Pages:           fresh,
	}
	for class, n := range model.CountByClass(results) {
		s.StatusCounts[class.String()] = n
	}
	for _, rec := range fresh {
		if isFailure(rec) {
			s.Failures = append(s.Failures, rec)
		}
	}
	return s
}

// Interrupted reports whether the crawl was stopped before completion.
func (s *CrawlSummary) Interrupted() bool {
	return s.Stats.Interrupted
}

func isFailure(rec model.PageRecord) bool {
	return rec.IsUnreachable() || rec.Status >= 400
}

// classCounts returns the non-zero status counts in display order.
func (s *CrawlSummary) classCounts() []classCount {
	var out []classCount
	for _, class := range model.AllStatusClasses {
		if n := s.StatusCounts[class.String()]; n > 0 {
			out = append(out, classCount{class: class, count: n})
		}
	}
	return out
}

type classCount struct {
	class model.StatusClass
	count int
}

// DiffSummary is the comparison of two result sets.
type DiffSummary struct {
	Version  string      `json:"version"`
	OldLabel string      `json:"old"`
	NewLabel string      `json:"new"`
	OldCount int         `json:"oldCount"`
	NewCount int         `json:"newCount"`
	Diff     *model.Diff `json:"diff"`
}

// NewDiffSummary compares before against after.
func NewDiffSummary(oldLabel string, before *model.ResultSet, newLabel string, after *model.ResultSet) *DiffSummary {
	return &DiffSummary{
		OldLabel: oldLabel,
		NewLabel: newLabel,
		OldCount: before.Len(),
		NewCount: after.Len(),
		Diff:     model.Compare(before, after),
	}
}
