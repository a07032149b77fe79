package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagewalk/internal/cache"
	"github.com/nao1215/pagewalk/internal/config"
	"github.com/nao1215/pagewalk/internal/database"
	"github.com/nao1215/pagewalk/internal/model"
	"github.com/nao1215/pagewalk/internal/report"
)

var (
	// ErrNotEnoughRuns is returned when history holds fewer than two finished
	// runs to compare.
	ErrNotEnoughRuns = errors.New("need at least two finished runs to compare")

	// ErrSameRun is returned when --with-run names the newest run itself.
	ErrSameRun = errors.New("cannot compare a run with itself")

	// ErrRunUnfinished is returned when --with-run names a run that never finished.
	ErrRunUnfinished = errors.New("run did not finish")
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [old.json new.json]",
		Short: "Compare two crawls of the same site",
		Long: `Compare shows which pages were added, removed or changed status between
two crawls.

Either pass two result files, or use --base-url to compare the two most
recent finished runs of a site from the history database.

Examples:
  # Compare two result files
  pagewalk compare 20260101-120000-example-com.json example-com.json

  # Compare the latest two runs of a site
  pagewalk compare --base-url https://example.com/

  # Compare the latest run against an older one
  pagewalk compare --base-url https://example.com/ --with-run 1f3a9c2e

  # List the runs of a site, or every crawled base URL
  pagewalk compare --list --base-url https://example.com/
  pagewalk compare --list-base-urls`,
		Args: cobra.RangeArgs(0, 2),
		RunE: runCompareCmd,
	}

	cmd.Flags().String("base-url", "", "Compare runs of this base URL from the history database")
	cmd.Flags().String("with-run", "", "Compare the latest run with this run id (or id prefix)")
	cmd.Flags().BoolP("list", "l", false, "List runs in the history database")
	cmd.Flags().Bool("list-base-urls", false, "List every base URL in the history database")
	cmd.Flags().String("db-dir", "", "Directory of the run history database (default: XDG data dir)")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the comparison as Markdown")

	return cmd
}

type compareOptions struct {
	baseURL      string
	withRun      string
	list         bool
	listBaseURLs bool
	dbDir        string
	json         bool
	markdown     bool
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts, err := compareFlags(cmd)
	if err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	// Validate arguments before opening the database.
	usesHistory := opts.list || opts.listBaseURLs || opts.baseURL != ""
	switch {
	case len(args) == 2 && usesHistory:
		return errors.New("pass either two result files or --base-url, not both")
	case len(args) == 2:
		return compareFiles(args[0], args[1], opts, out)
	case len(args) == 1:
		return errors.New("two result files are required")
	case !usesHistory:
		return errors.New("pass two result files or --base-url (use --list-base-urls to see crawled sites)")
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	if opts.listBaseURLs {
		return listBaseURLs(ctx, db, out)
	}

	baseURL := opts.baseURL
	if baseURL != "" {
		if baseURL, err = resolveBaseURL(ctx, db, baseURL); err != nil {
			return err
		}
	}

	if opts.list {
		return listRuns(ctx, db, baseURL, out)
	}
	return compareRuns(ctx, db, baseURL, opts, out)
}

func compareFlags(cmd *cobra.Command) (compareOptions, error) {
	var (
		opts compareOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.baseURL, err = flags.GetString("base-url"); err != nil {
		return opts, err
	}
	if opts.withRun, err = flags.GetString("with-run"); err != nil {
		return opts, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.listBaseURLs, err = flags.GetBool("list-base-urls"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	return opts, nil
}

func diffWriter(opts compareOptions, out io.Writer) report.Writer {
	switch {
	case opts.json:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out)
	}
}

// compareFiles diffs two result files. Unlike a crawl, a missing or
// corrupt file is an error here.
func compareFiles(oldPath, newPath string, opts compareOptions, out io.Writer) error {
	before, err := loadResultFile(oldPath)
	if err != nil {
		return err
	}
	after, err := loadResultFile(newPath)
	if err != nil {
		return err
	}

	summary := report.NewDiffSummary(oldPath, before, newPath, after)
	summary.Version = getVersion()
	_, err = diffWriter(opts, out).WriteDiff(summary)
	return err
}

func loadResultFile(path string) (*model.ResultSet, error) {
	loaded := cache.NewStore(path).Load()
	if loaded.Missing {
		return nil, fmt.Errorf("result file not found: %s", path)
	}
	if loaded.Warning != nil && errors.Is(loaded.Warning, cache.ErrCorrupt) {
		return nil, loaded.Warning
	}
	return loaded.Results, nil
}

// resolveBaseURL finds the stored base URL matching raw, tolerating a
// missing or extra trailing slash.
func resolveBaseURL(ctx context.Context, db *database.HistoryDB, raw string) (string, error) {
	known, err := db.ListBaseURLs(ctx)
	if err != nil {
		return "", err
	}
	for _, candidate := range []string{raw, raw + "/", strings.TrimSuffix(raw, "/")} {
		if slices.Contains(known, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no runs found for %s (use --list-base-urls to see crawled sites)", raw)
}

func compareRuns(ctx context.Context, db *database.HistoryDB, baseURL string, opts compareOptions, out io.Writer) error {
	runs, err := db.ListRuns(ctx, baseURL)
	if err != nil {
		return err
	}
	finished := slices.DeleteFunc(runs, func(r database.Run) bool { return !r.Finished() })
	if len(finished) == 0 {
		return ErrNotEnoughRuns
	}

	newer := finished[0]
	var older database.Run
	if opts.withRun != "" {
		found, err := db.GetRun(ctx, opts.withRun)
		if err != nil {
			return err
		}
		switch {
		case found.BaseURL != baseURL:
			return fmt.Errorf("run %s belongs to %s, not %s", found.ShortID(), found.BaseURL, baseURL)
		case found.ID == newer.ID:
			return fmt.Errorf("%w: %s is the latest run", ErrSameRun, found.ShortID())
		case !found.Finished():
			return fmt.Errorf("%w: %s", ErrRunUnfinished, found.ShortID())
		}
		older = *found
	} else {
		if len(finished) < 2 {
			return ErrNotEnoughRuns
		}
		older = finished[1]
	}

	before, err := db.RunPages(ctx, older.ID)
	if err != nil {
		return err
	}
	after, err := db.RunPages(ctx, newer.ID)
	if err != nil {
		return err
	}

	summary := report.NewDiffSummary(runLabel(older), before, runLabel(newer), after)
	summary.Version = getVersion()
	_, err = diffWriter(opts, out).WriteDiff(summary)
	return err
}

func runLabel(r database.Run) string {
	return fmt.Sprintf("%s (%s)", r.ShortID(), r.StartedAt.Local().Format("2006-01-02 15:04:05"))
}

func listBaseURLs(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	urls, err := db.ListBaseURLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list base urls: %w", err)
	}

	if len(urls) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the history.")
		fmt.Fprintln(out, "\nUse 'pagewalk crawl <domain>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  %s\n", u)
	}
	fmt.Fprintln(out, "\nUse 'pagewalk compare --list --base-url <url>' to see the runs of a site.")
	return nil
}

func listRuns(ctx context.Context, db *database.HistoryDB, baseURL string, out io.Writer) error {
	runs, err := db.ListRuns(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	if baseURL != "" {
		fmt.Fprintf(out, "Runs of %s (%d):\n\n", baseURL, len(runs))
	} else {
		fmt.Fprintf(out, "Runs (%d):\n\n", len(runs))
	}
	fmt.Fprintf(out, "  %-8s  %-19s  %-9s  %6s  %6s  %s\n", "ID", "Started", "Mode", "Pages", "New", "State")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, r := range runs {
		state := "complete"
		switch {
		case !r.Finished():
			state = "unfinished"
		case r.Interrupted:
			state = "interrupted"
		}
		line := fmt.Sprintf("  %-8s  %-19s  %-9s  %6d  %6d  %s",
			r.ShortID(), r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Mode, r.PageCount, r.FetchedCount, state)
		if baseURL == "" {
			line += "  " + r.BaseURL
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
