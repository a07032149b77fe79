package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pagewalk"

	// DefaultBasePath crawls the whole domain.
	DefaultBasePath = "/"

	// DefaultWorkers of 1 reproduces a strict depth-first crawl order.
	DefaultWorkers = 1

	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies pagewalk in HTTP requests.
	DefaultUserAgent = "pagewalk/1.0 (+https://github.com/nao1215/pagewalk)"

	// DefaultMaxBodySize limits how much of a 200 response is read for link
	// extraction.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCheckpointEvery saves partial results after this many new
	// records. 0 disables checkpointing.
	DefaultCheckpointEvery = 100

	// MaxWorkers caps concurrency to keep a single crawl polite.
	MaxWorkers = 64
)

// Config holds all options of a crawl. It is populated from defaults, the
// config file and CLI flags, in that order, and passed down explicitly.
type Config struct {
	// BaseDomain is the scheme and host to crawl, e.g. "http://example.com".
	BaseDomain string

	// BasePath restricts the crawl to URLs under it.
	BasePath string

	// Excludes are path prefixes (or absolute URL prefixes) never fetched.
	Excludes []string

	// IgnoreQuery strips the query string from every discovered URL.
	IgnoreQuery bool

	// ForceRebuild ignores any cached results and starts from scratch.
	ForceRebuild bool

	// SeedListFile is a JSON array of paths to fetch instead of
	// discovering links. Empty means discovery mode.
	SeedListFile string

	// Timestamped writes to a new run-stamped file. Nothing is resumed.
	Timestamped bool

	// Workers is the number of concurrent fetches.
	Workers int

	// Delay is the minimum interval between two requests.
	Delay time.Duration

	// Timeout bounds a single fetch.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize caps the bytes read from a 200 response.
	MaxBodySize int64

	// MaxPages stops scheduling fetches after this many. 0 means unlimited.
	MaxPages int

	// CacheDir holds the result files.
	CacheDir string

	// DBDir holds the run history database.
	DBDir string

	// SaveHistory records the run in the history database.
	SaveHistory bool

	// FinalLocation resolves the landing URL of every redirect chain.
	FinalLocation bool

	// FollowExternalRedirects enqueues redirect targets outside the scope.
	FollowExternalRedirects bool

	// Proxy is a proxy URL (socks5://, http://) or a bare host:port which
	// is treated as SOCKS5.
	Proxy string

	// CheckpointEvery saves partial results every N records. 0 disables it.
	CheckpointEvery int

	// ConfigFilePath is an explicit config file. Empty searches the current
	// and home directories for .pagewalk.
	ConfigFilePath string

	// SiteConfigs is the loaded config file, nil when none was found.
	SiteConfigs *File

	// JSONReport prints the summary as JSON.
	JSONReport bool

	// MarkdownReport prints the summary as Markdown.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// Verbose enables debug logging and per-page output.
	Verbose bool
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		BasePath:        DefaultBasePath,
		Workers:         DefaultWorkers,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		CacheDir:        XDGCacheDir(),
		DBDir:           XDGDataDir(),
		SaveHistory:     true,
		FinalLocation:   true,
		CheckpointEvery: DefaultCheckpointEvery,
	}
}

// SeedListMode reports whether the crawl fetches a supplied list of paths.
func (c *Config) SeedListMode() bool {
	return c.SeedListFile != ""
}

// ApplySite overlays the file settings for the crawled site. Values set on
// the command line win: flagSet reports whether a flag was given.
func (c *Config) ApplySite(flagSet func(name string) bool) {
	if c.SiteConfigs == nil {
		return
	}
	site := c.SiteConfigs.GetSiteConfig(c.BaseDomain)

	if site.Workers > 0 && !flagSet("workers") {
		c.Workers = site.Workers
	}
	if site.Delay > 0 && !flagSet("delay") {
		c.Delay = site.Delay
	}
	if site.Timeout > 0 && !flagSet("timeout") {
		c.Timeout = site.Timeout
	}
	if site.UserAgent != "" && !flagSet("user-agent") {
		c.UserAgent = site.UserAgent
	}
	if site.IgnoreQuery != nil && !flagSet("ignore-query") {
		c.IgnoreQuery = *site.IgnoreQuery
	}
	// Excludes add up; a flag never removes a configured exclusion.
	c.Excludes = append(c.Excludes, site.ExcludePaths...)
}

// XDGDataDir returns the directory of the run history database.
// On Linux: ~/.local/share/pagewalk
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagewalk.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the directory of the result files.
// On Linux: ~/.cache/pagewalk
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.BaseDomain == "" {
		return ErrNoDomain
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 || c.Workers > MaxWorkers {
		return ErrInvalidWorkers
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.CheckpointEvery < 0 {
		return ErrInvalidCheckpoint
	}
	return nil
}
