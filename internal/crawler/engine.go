package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/pagewalk/internal/fetcher"
	"github.com/nao1215/pagewalk/internal/model"
	"github.com/nao1215/pagewalk/internal/scope"
)

// RedirectPolicy decides which redirect targets re-enter the frontier.
type RedirectPolicy int

const (
	// RedirectWithinScope enqueues a redirect target only when it is in scope.
	RedirectWithinScope RedirectPolicy = iota

	// RedirectFollowAll enqueues every redirect target, in scope or not.
	// Links of out-of-scope pages reached this way are still filtered.
	RedirectFollowAll
)

// String returns the policy name.
func (p RedirectPolicy) String() string {
	if p == RedirectFollowAll {
		return "follow-all"
	}
	return "within-scope"
}

// RecordFunc observes every record appended during a run together with the
// outcome it came from. It is called from worker goroutines and must be safe
// for concurrent use.
type RecordFunc func(rec model.PageRecord, out fetcher.Outcome)

// Stats summarizes one run.
type Stats struct {
	// Fetched counts requests issued, including aborted ones.
	Fetched int `json:"fetched"`

	// Recorded counts records appended during this run.
	Recorded int `json:"recorded"`

	// OK counts 200 responses.
	OK int `json:"ok"`

	// Redirects counts redirect responses.
	Redirects int `json:"redirects"`

	// Failed counts error statuses and unreachable pages.
	Failed int `json:"failed"`

	// Skipped counts frontier entries that were already known.
	Skipped int `json:"skipped"`

	// OutOfScopeRedirects counts redirect targets dropped by the scope check.
	OutOfScopeRedirects int `json:"outOfScopeRedirects"`

	// Released counts fetches aborted by cancellation.
	Released int `json:"released"`

	// LimitReached is true when the page limit stopped the crawl.
	LimitReached bool `json:"limitReached"`

	// Interrupted is true when the context was canceled.
	Interrupted bool `json:"interrupted"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// Engine drives a crawl over a shared frontier.
type Engine struct {
	scope          *scope.Scope
	fetcher        fetcher.Fetcher
	extractor      *Extractor
	workers        int
	limiter        *rate.Limiter
	seedOnly       bool
	redirectPolicy RedirectPolicy
	maxPages       int
	logger         *slog.Logger
	onRecord       RecordFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent fetch workers. Values below 1
// are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithDelay sets the minimum interval between two fetch starts across all
// workers. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithSeedOnly restricts the crawl to the seeds: no links are extracted and
// no redirect targets are enqueued.
func WithSeedOnly(seedOnly bool) Option {
	return func(e *Engine) {
		e.seedOnly = seedOnly
	}
}

// WithRedirectPolicy sets how redirect targets are treated.
func WithRedirectPolicy(p RedirectPolicy) Option {
	return func(e *Engine) {
		e.redirectPolicy = p
	}
}

// WithMaxPages stops scheduling once n pages were fetched in this run.
// Zero means unlimited.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxPages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecordFunc registers an observer for new records.
func WithRecordFunc(fn RecordFunc) Option {
	return func(e *Engine) {
		e.onRecord = fn
	}
}

// NewEngine creates an Engine for scope s using f for requests.
func NewEngine(s *scope.Scope, f fetcher.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		scope:     s,
		fetcher:   f,
		extractor: NewExtractor(s),
		workers:   1,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run crawls from seeds until the frontier is exhausted, the page limit is
// hit or ctx is canceled. Records are appended to reg. Seeds are normalized
// but not scope checked, so seed-list entries are always visited.
//
// On cancellation Run waits for the workers to stop and returns
// ErrInterrupted; reg then holds every record completed before the stop,
// and reg.Pending lists the URLs that were scheduled but never recorded.
func (e *Engine) Run(ctx context.Context, reg *Registry, seeds []string) (Stats, error) {
	start := time.Now()
	f := newFrontier()

	normalized := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if u := e.scope.Normalize(s); u != "" {
			normalized = append(normalized, u)
		}
	}
	reg.Enqueue(normalized...)
	f.push(normalized...)

	stop := context.AfterFunc(ctx, f.close)
	defer stop()

	c := &counter{}

	e.logger.Info("crawl started",
		"baseURL", e.scope.BaseURL(),
		"seeds", len(normalized),
		"known", reg.Len(),
		"workers", e.workers,
		"seedOnly", e.seedOnly,
		"redirectPolicy", e.redirectPolicy.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			e.work(gctx, f, reg, c)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	stats := c.snapshot()
	stats.Duration = time.Since(start)

	if ctx.Err() != nil {
		stats.Interrupted = true
		e.logger.Warn("crawl interrupted",
			"recorded", stats.Recorded,
			"released", stats.Released,
		)
		return stats, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}

	e.logger.Info("crawl finished",
		"fetched", stats.Fetched,
		"recorded", stats.Recorded,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, nil
}

func (e *Engine) work(ctx context.Context, f *frontier, reg *Registry, c *counter) {
	for {
		u, ok := f.pop()
		if !ok {
			return
		}
		e.visit(ctx, f, reg, c, u)
		f.done()
	}
}

// visit runs one URL through claim, fetch, record and expansion.
func (e *Engine) visit(ctx context.Context, f *frontier, reg *Registry, c *counter, u string) {
	if !reg.Claim(u) {
		c.add(func(s *Stats) { s.Skipped++ })
		return
	}

	if !c.reserve(e.maxPages) {
		reg.Release(u)
		c.add(func(s *Stats) { s.LimitReached = true })
		e.logger.Info("page limit reached", "maxPages", e.maxPages)
		f.close()
		return
	}

	if err := e.limiter.Wait(ctx); err != nil {
		reg.Release(u)
		c.add(func(s *Stats) { s.Released++ })
		return
	}

	out := e.fetcher.Fetch(ctx, u)
	if ctx.Err() != nil {
		reg.Release(u)
		c.add(func(s *Stats) { s.Released++ })
		e.logger.Debug("fetch aborted", "url", u)
		return
	}

	rec := out.Record(u)
	var next []string
	if !e.seedOnly {
		next = e.expand(c, u, out)
	}
	scheduled, err := reg.Commit(rec, next)
	if err != nil {
		e.logger.Error("failed to record page", "url", u, "error", err)
		return
	}
	c.add(func(s *Stats) {
		s.Recorded++
		switch {
		case out.IsRedirect():
			s.Redirects++
		case out.IsOK():
			s.OK++
		case rec.Status >= 400 || rec.IsUnreachable():
			s.Failed++
		}
	})

	if out.Failed() {
		e.logger.Warn("fetch failed", "url", u, "status", rec.Status, "error", out.Err)
	} else {
		e.logger.Info("fetched", "url", u, "status", rec.Status, "location", rec.Location)
	}

	if e.onRecord != nil {
		e.onRecord(rec, out)
	}

	f.push(scheduled...)
}

// expand returns the URLs a fetched page leads to: the redirect target when
// the policy admits it, or the accepted links of a 200 page.
func (e *Engine) expand(c *counter, u string, out fetcher.Outcome) []string {
	switch {
	case out.IsRedirect():
		target, ok := e.scope.ResolveRedirect(u, out.Location)
		if !ok {
			e.logger.Debug("unresolvable redirect", "url", u, "location", out.Location)
			return nil
		}
		if e.redirectPolicy == RedirectWithinScope && !e.scope.InScope(target) {
			c.add(func(s *Stats) { s.OutOfScopeRedirects++ })
			e.logger.Debug("redirect target out of scope", "url", u, "target", target)
			return nil
		}
		return []string{target}
	case out.IsOK() && len(out.Body) > 0:
		links := e.extractor.Links(out.Body, out.ContentType)
		e.logger.Debug("links extracted", "url", u, "links", len(links))
		return links
	default:
		return nil
	}
}

// counter aggregates Stats across workers.
type counter struct {
	mu    sync.Mutex
	stats Stats
}

func (c *counter) add(fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

// reserve counts a fetch, refusing once limit fetches were made.
// A limit of zero is unlimited.
func (c *counter) reserve(limit int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 && c.stats.Fetched >= limit {
		return false
	}
	c.stats.Fetched++
	return true
}

func (c *counter) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
