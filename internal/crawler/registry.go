package crawler

import (
	"slices"
	"sync"

	"github.com/nao1215/pagewalk/internal/model"
)

// Registry is the visited set of a crawl. It owns the ResultSet being built,
// tracks URLs that are claimed but not yet recorded, and remembers every
// URL scheduled for a visit until it is recorded.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	results *model.ResultSet
	claimed map[string]struct{}
	queued  map[string]struct{}
	loaded  int
}

// NewRegistry creates a Registry seeded with a copy of prior. prior may be nil.
func NewRegistry(prior *model.ResultSet) *Registry {
	results := model.NewResultSet()
	if prior != nil {
		results = prior.Clone()
	}
	return &Registry{
		results: results,
		claimed: make(map[string]struct{}),
		queued:  make(map[string]struct{}),
		loaded:  results.Len(),
	}
}

// Has reports whether url is recorded or currently claimed.
func (r *Registry) Has(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.has(url)
}

func (r *Registry) has(url string) bool {
	if r.results.Contains(url) {
		return true
	}
	_, ok := r.claimed[url]
	return ok
}

// Claim marks url as being fetched. It returns true for exactly one caller
// per URL; every later call returns false until the claim is released.
func (r *Registry) Claim(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.has(url) {
		return false
	}
	r.claimed[url] = struct{}{}
	return true
}

// Release drops the claim on url without recording anything.
func (r *Registry) Release(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, url)
}

// Record appends rec and clears its claim.
func (r *Registry) Record(rec model.PageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.results.Append(rec); err != nil {
		return err
	}
	delete(r.claimed, rec.URL)
	delete(r.queued, rec.URL)
	return nil
}

// Commit records rec and schedules next in one step: the URLs of next that
// are neither recorded nor claimed are marked pending and returned in
// order, without duplicates, for the caller to push onto the frontier.
// Checkpoints therefore never see a record without its outgoing links.
func (r *Registry) Commit(rec model.PageRecord, next []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.results.Append(rec); err != nil {
		return nil, err
	}
	delete(r.claimed, rec.URL)
	delete(r.queued, rec.URL)

	scheduled := make([]string, 0, len(next))
	seen := make(map[string]struct{}, len(next))
	for _, u := range next {
		if _, dup := seen[u]; dup || r.has(u) {
			continue
		}
		seen[u] = struct{}{}
		r.queued[u] = struct{}{}
		scheduled = append(scheduled, u)
	}
	return scheduled, nil
}

// Enqueue notes that urls are scheduled for a visit. Recorded URLs are
// ignored.
func (r *Registry) Enqueue(urls ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range urls {
		if !r.results.Contains(u) {
			r.queued[u] = struct{}{}
		}
	}
}

// Pending returns the scheduled URLs that have no record yet, sorted.
// This includes URLs still waiting in the frontier, URLs being fetched
// and claims released by a cancellation. After an interrupted run they
// are the seeds that let the next run pick up where this one stopped.
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending()
}

func (r *Registry) pending() []string {
	pending := make([]string, 0, len(r.queued))
	for u := range r.queued {
		pending = append(pending, u)
	}
	slices.Sort(pending)
	return pending
}

// State returns a copy of the records together with the pending URLs,
// taken under one lock so the two agree with each other.
func (r *Registry) State() (*model.ResultSet, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results.Clone(), r.pending()
}

// Snapshot returns a copy of the records gathered so far.
func (r *Registry) Snapshot() *model.ResultSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results.Clone()
}

// Len returns the number of records, loaded ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results.Len()
}

// Loaded returns how many records the registry was seeded with.
func (r *Registry) Loaded() int {
	return r.loaded
}
