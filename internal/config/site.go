package config

import (
	"maps"
	"strings"
	"time"
)

// SiteConfig holds settings for one crawled site.
type SiteConfig struct {
	// Cookie is sent with every request, "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// ExcludePaths are added to the --exclude-path prefixes.
	ExcludePaths []string `yaml:"excludePaths,omitempty"`

	// IgnoreQuery overrides the --ignore-query default when set.
	IgnoreQuery *bool `yaml:"ignoreQuery,omitempty"`

	// UserAgent replaces the default User-Agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	Workers int           `yaml:"workers,omitempty"`
	Delay   time.Duration `yaml:"delay,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// File is the structure of the .pagewalk configuration file.
type File struct {
	// Sites maps a base domain ("http://example.com") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig merges the settings for domain over the defaults. Site
// keys match with or without a trailing slash.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.ExcludePaths = append([]string(nil), cf.Defaults.ExcludePaths...)

	site, ok := cf.Sites[domain]
	if !ok {
		site, ok = cf.Sites[strings.TrimRight(domain, "/")]
	}
	if !ok {
		site, ok = cf.Sites[strings.TrimRight(domain, "/")+"/"]
	}
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	result.ExcludePaths = append(result.ExcludePaths, site.ExcludePaths...)
	if site.IgnoreQuery != nil {
		result.IgnoreQuery = site.IgnoreQuery
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Workers != 0 {
		result.Workers = site.Workers
	}
	if site.Delay != 0 {
		result.Delay = site.Delay
	}
	if site.Timeout != 0 {
		result.Timeout = site.Timeout
	}
	return result
}
