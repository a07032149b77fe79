package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagewalk/internal/cache"
	"github.com/nao1215/pagewalk/internal/config"
	"github.com/nao1215/pagewalk/internal/crawler"
	"github.com/nao1215/pagewalk/internal/database"
	"github.com/nao1215/pagewalk/internal/fetcher"
	"github.com/nao1215/pagewalk/internal/model"
	"github.com/nao1215/pagewalk/internal/report"
	"github.com/nao1215/pagewalk/internal/scope"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <domain>",
		Short: "Crawl a site and record the status of every page",
		Long: `Crawl fetches every page reachable from the base URL without leaving it and
records the HTTP status of each one. Redirects are recorded with their
Location header and followed; links are extracted from 200 responses only.

The domain is a scheme and host without a path, e.g. https://example.com.
Use --base-path to restrict the crawl to a part of the site.

Results are written to <cache-dir>/<slug>.json. If that file exists the crawl
resumes from it and only fetches unknown pages. Interrupting a crawl (Ctrl+C)
saves everything recorded so far, and the URLs still waiting to be visited go
to <cache-dir>/<slug>.pending.json; the next run starts from them. Seed-list
runs write to <cache-dir>/<slug>-list.json and always fetch every listed path.

Examples:
  # Crawl a whole site
  pagewalk crawl https://example.com

  # Crawl only the documentation, skipping the API reference
  pagewalk crawl -b /docs -e /docs/api https://example.com

  # Re-check a fixed list of paths (JSON array of strings)
  pagewalk crawl --list paths.json https://example.com

  # Start over, four workers, one request every 100ms at most
  pagewalk crawl -f -w 4 --delay 100ms https://example.com

  # Markdown report to a file
  pagewalk crawl -m -o report.md https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Scope
	cmd.Flags().StringP("base-path", "b", config.DefaultBasePath, "Only crawl URLs under this path")
	cmd.Flags().StringArrayP("exclude-path", "e", nil, "Skip URLs under this path prefix (repeatable)")
	cmd.Flags().BoolP("ignore-query", "q", false, "Strip query strings from discovered URLs")

	// Persistence
	cmd.Flags().BoolP("force", "f", false, "Ignore cached results and crawl from scratch")
	cmd.Flags().StringP("list", "l", "", "Fetch only the paths listed in this JSON file")
	cmd.Flags().Bool("timestamp", false, "Write results to a new timestamped file (never resumes)")
	cmd.Flags().String("cache-dir", "", "Directory of result files (default: XDG cache dir)")
	cmd.Flags().String("db-dir", "", "Directory of the run history database (default: XDG data dir)")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().Int("checkpoint", config.DefaultCheckpointEvery, "Save partial results every N pages (0 disables)")

	// Fetching
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of concurrent fetches")
	cmd.Flags().Duration("delay", 0, "Minimum interval between requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout of a single fetch")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum bytes read from a page")
	cmd.Flags().Int("max-pages", 0, "Stop after fetching this many pages (0 means unlimited)")
	cmd.Flags().String("proxy", "", "Proxy URL (socks5://, http://) or host:port for SOCKS5")
	cmd.Flags().Bool("no-final-location", false, "Do not resolve where redirect chains end")
	cmd.Flags().Bool("follow-external-redirects", false, "Also fetch redirect targets outside the base path")

	// Configuration file
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .pagewalk in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false, "Output a JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output a Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write the summary to a file as well as the terminal")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := setupLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, saving partial results...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from defaults, the config file and flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if len(args) > 0 {
		cfg.BaseDomain = args[0]
	}

	if cfg.BasePath, err = flags.GetString("base-path"); err != nil {
		return nil, err
	}
	if cfg.Excludes, err = flags.GetStringArray("exclude-path"); err != nil {
		return nil, err
	}
	if cfg.IgnoreQuery, err = flags.GetBool("ignore-query"); err != nil {
		return nil, err
	}
	if cfg.ForceRebuild, err = flags.GetBool("force"); err != nil {
		return nil, err
	}
	if cfg.SeedListFile, err = flags.GetString("list"); err != nil {
		return nil, err
	}
	if cfg.Timestamped, err = flags.GetBool("timestamp"); err != nil {
		return nil, err
	}

	cacheDir, err := flags.GetString("cache-dir")
	if err != nil {
		return nil, err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	if cfg.CheckpointEvery, err = flags.GetInt("checkpoint"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}

	noFinal, err := flags.GetBool("no-final-location")
	if err != nil {
		return nil, err
	}
	cfg.FinalLocation = !noFinal

	if cfg.FollowExternalRedirects, err = flags.GetBool("follow-external-redirects"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit config path must exist; the implicit search may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplySite(flags.Changed)

	return cfg, nil
}

// runCrawl performs one crawl and writes its summary to out. It returns an
// error wrapping crawler.ErrInterrupted when ctx was canceled; the partial
// results have been saved by then.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	s, err := scope.New(cfg.BaseDomain, cfg.BasePath, cfg.Excludes, cfg.IgnoreQuery)
	if err != nil {
		return err
	}

	// The seed list is read before anything is written.
	mode := database.ModeDiscover
	seeds := []string{s.BaseURL()}
	if cfg.SeedListMode() {
		paths, err := cache.ReadSeedList(cfg.SeedListFile)
		if err != nil {
			return err
		}
		mode = database.ModeSeedList
		seeds = make([]string, 0, len(paths))
		for _, p := range paths {
			seeds = append(seeds, s.SeedURL(p))
		}
	}

	// Seed-list runs and run-stamped output never resume: every listed
	// path is fetched again and the discovery cache is left alone.
	startedAt := time.Now()
	resumable := !cfg.SeedListMode() && !cfg.Timestamped
	var store *cache.Store
	switch {
	case cfg.Timestamped:
		store = cache.NewStore(cache.StampedPath(cfg.CacheDir, s.BaseURL(), startedAt))
	case cfg.SeedListMode():
		store = cache.NewStore(cache.ListPath(cfg.CacheDir, s.BaseURL()))
	default:
		store = cache.NewStore(cache.Path(cfg.CacheDir, s.BaseURL()))
	}

	prior := model.NewResultSet()
	if resumable && !cfg.ForceRebuild {
		prior = loadPrior(store, logger)
		pending, err := store.LoadPending()
		if err != nil {
			logger.Warn("pending URLs are unusable, resuming from the base URL only", "error", err)
		}
		if len(pending) > 0 {
			logger.Info("resuming interrupted crawl", "pending", len(pending), "path", store.PendingPath())
			seeds = append(seeds, pending...)
		}
	}
	reg := crawler.NewRegistry(prior)

	f, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	history, run := startHistory(ctx, cfg, logger, s.BaseURL(), mode, store.Path())
	if history != nil {
		defer history.Close()
	}

	state := reg.State
	if !resumable {
		state = func() (*model.ResultSet, []string) { return reg.Snapshot(), nil }
	}
	checkpoints := cache.NewCheckpointer(store, state, cfg.CheckpointEvery, logger)
	onRecord := func(rec model.PageRecord, outcome fetcher.Outcome) {
		checkpoints.Observe()
		if run == nil {
			return
		}
		detail := database.PageDetail{ContentHash: outcome.Digest}
		if outcome.Err != nil {
			detail.Error = outcome.Err.Error()
		}
		// Pages recorded while shutting down still belong to the run.
		if err := history.InsertPage(context.WithoutCancel(ctx), run.ID, rec, detail); err != nil {
			logger.Warn("failed to record page in history", "url", rec.URL, "error", err)
		}
	}

	policy := crawler.RedirectWithinScope
	if cfg.FollowExternalRedirects {
		policy = crawler.RedirectFollowAll
	}

	engine := crawler.NewEngine(s, f,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithDelay(cfg.Delay),
		crawler.WithSeedOnly(cfg.SeedListMode()),
		crawler.WithRedirectPolicy(policy),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithLogger(logger),
		crawler.WithRecordFunc(onRecord),
	)

	stats, crawlErr := engine.Run(ctx, reg, seeds)
	if crawlErr != nil && !errors.Is(crawlErr, crawler.ErrInterrupted) {
		return crawlErr
	}

	results, pending := reg.State()
	if err := store.Save(results); err != nil {
		logger.Error("failed to save results", "path", store.Path(), "error", err)
		return err
	}
	if resumable {
		// A complete run leaves nothing pending, which removes the sidecar.
		if err := store.SavePending(pending); err != nil {
			logger.Error("failed to save pending URLs", "path", store.PendingPath(), "error", err)
			return err
		}
	} else {
		pending = nil
	}

	summary := report.NewCrawlSummary(s.BaseURL(), reg.Loaded(), results, stats)
	summary.Version = getVersion()
	summary.Mode = mode
	summary.OutputPath = store.Path()
	summary.StartedAt = startedAt
	summary.Pending = len(pending)

	if run != nil {
		summary.RunID = run.ID
		if err := history.FinishRun(context.WithoutCancel(ctx), run.ID, results, stats.Recorded, stats.Interrupted); err != nil {
			logger.Warn("failed to finish run in history", "run", run.ID, "error", err)
		}
	}

	if err := outputReport(cfg, summary, out); err != nil {
		return err
	}
	return crawlErr
}

// loadPrior reads the cached results of an earlier run. Problems with the
// file are reported and crawling starts from scratch.
func loadPrior(store *cache.Store, logger *slog.Logger) *model.ResultSet {
	loaded := store.Load()
	if loaded.Warning != nil {
		if errors.Is(loaded.Warning, cache.ErrCorrupt) {
			logger.Warn("cached results are unusable, starting from scratch", "error", loaded.Warning)
		} else {
			logger.Warn("problem with cached results", "error", loaded.Warning)
		}
	}
	return loaded.Results
}

// newFetcher builds the HTTP fetcher with the site's cookie and headers.
func newFetcher(cfg *config.Config) (*fetcher.HTTPFetcher, error) {
	var site config.SiteConfig
	if cfg.SiteConfigs != nil {
		site = cfg.SiteConfigs.GetSiteConfig(cfg.BaseDomain)
	}

	client, err := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Proxy:   cfg.Proxy,
		Cookie:  site.Cookie,
		Headers: site.Headers,
	})
	if err != nil {
		return nil, err
	}

	return fetcher.NewHTTPFetcher(client,
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithFinalLocation(cfg.FinalLocation),
	), nil
}

// startHistory opens the history database and starts a run. History is
// best effort: on failure the crawl continues without it.
func startHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, baseURL, mode, outputPath string) (*database.HistoryDB, *database.Run) {
	if !cfg.SaveHistory {
		return nil, nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		return nil, nil
	}

	run, err := db.StartRun(ctx, baseURL, mode, outputPath)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
		_ = db.Close() //nolint:errcheck // best effort
		return nil, nil
	}

	logger.Debug("run started", "run", run.ID, "db", db.Path())
	return db, run
}

// outputReport writes the summary to out in the selected format. With
// --output the same format also goes to the file and the terminal gets the
// plain summary.
func outputReport(cfg *config.Config, summary *report.CrawlSummary, out io.Writer) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg, out).WriteCrawl(summary)
		return err
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		newReportWriter(cfg, f),
		report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)),
	)
	_, err = w.WriteCrawl(summary)
	return err
}

func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}
