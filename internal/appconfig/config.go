package appconfig

/*
Responsibilities

- Hold process-wide settings: where the durable store lives, the crawler's
  identifying user agent, and the worker tick period (SPEC_FULL §A.3)
- Provide the default CrawlOptions (spec.md §6.2) a caller's start() request
  falls back to when a field is omitted

The teacher's internal/config scopes a single crawl invocation (seed URLs,
output dir, one-shot CLI flags); here the scope is "this process," since one
webx process now runs many concurrent jobs against one long-lived store. The
functional-builder idiom (WithDefault().WithX().Build()) is kept.
*/

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/webxcore/webx/internal/store"
)

const (
	EnvDBPath       = "WEBX_DB_PATH"
	EnvUserAgent    = "WEBX_USER_AGENT"
	EnvPollMs       = "CRAWLER_POLL_MS"
	defaultDBPath   = "data/webx.sqlite"
	defaultUA       = "webx-crawler/1.0"
	defaultPollMs   = 1000
)

// Config is process-wide settings: sqlite path, crawler user agent, worker
// poll period, and the default CrawlOptions used when a start() caller
// omits fields.
type Config struct {
	dbPath       string
	userAgent    string
	pollInterval time.Duration
	defaultOpts  store.CrawlOptions
}

// WithDefault returns a Config seeded with the spec's documented defaults
// (spec.md §6.2, SPEC_FULL §A.3).
func WithDefault() *Config {
	return &Config{
		dbPath:       defaultDBPath,
		userAgent:    defaultUA,
		pollInterval: defaultPollMs * time.Millisecond,
		defaultOpts: store.CrawlOptions{
			MaxPages:         100,
			MaxDepth:         2,
			Mode:             "compact",
			RespectRobots:    true,
			PerDomainDelayMs: 500,
			SeedFromSitemaps: true,
			MaxSitemapUrls:   200,
			AdaptiveDelay:    true,
		},
	}
}

// WithEnv overlays environment variables (WEBX_DB_PATH, WEBX_USER_AGENT,
// CRAWLER_POLL_MS) onto c, ignoring unset/unparseable values. Flags passed
// to cmd/webx are applied after this, so "flags override env override
// defaults" holds.
func (c *Config) WithEnv() *Config {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.dbPath = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.userAgent = v
	}
	if v := os.Getenv(EnvPollMs); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.pollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	return c
}

func (c *Config) WithDBPath(path string) *Config {
	c.dbPath = path
	return c
}

func (c *Config) WithUserAgent(userAgent string) *Config {
	c.userAgent = userAgent
	return c
}

func (c *Config) WithPollInterval(d time.Duration) *Config {
	c.pollInterval = d
	return c
}

func (c *Config) WithDefaultOptions(opts store.CrawlOptions) *Config {
	c.defaultOpts = opts
	return c
}

// Build validates c and returns the immutable Config value.
func (c *Config) Build() (Config, error) {
	if c.dbPath == "" {
		return Config{}, fmt.Errorf("%w: dbPath must not be empty", ErrInvalidConfig)
	}
	if c.userAgent == "" {
		return Config{}, fmt.Errorf("%w: userAgent must not be empty", ErrInvalidConfig)
	}
	if c.pollInterval <= 0 {
		return Config{}, fmt.Errorf("%w: pollInterval must be positive", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) DBPath() string                  { return c.dbPath }
func (c Config) UserAgent() string                { return c.userAgent }
func (c Config) PollInterval() time.Duration      { return c.pollInterval }
func (c Config) DefaultOptions() store.CrawlOptions { return c.defaultOpts }

// StartOptions is the caller-facing, partially-specified request shape for
// engine.Start (spec.md §6.2's "options?" — every field optional). Pointer
// fields left nil take the process default in ResolveOptions; bool fields
// use a pointer for the same reason a plain bool can't distinguish "not
// specified" from "explicitly false."
type StartOptions struct {
	MaxPages         *int
	MaxDepth         *int
	Mode             *string
	AllowDomains     []string
	DenyDomains      []string
	RespectRobots    *bool
	PerDomainDelayMs *int
	SeedFromSitemaps *bool
	MaxSitemapUrls   *int
	AdaptiveDelay    *bool
}

// ResolveOptions fills any unset field of opts with c's process defaults,
// producing the immutable CrawlOptions snapshot a job stores at creation
// time (spec.md §3 CrawlJob.options, §6.2).
func (c Config) ResolveOptions(opts StartOptions) store.CrawlOptions {
	d := c.defaultOpts
	resolved := d
	resolved.AllowDomains = opts.AllowDomains
	resolved.DenyDomains = opts.DenyDomains

	if opts.MaxPages != nil {
		resolved.MaxPages = *opts.MaxPages
	}
	if opts.MaxDepth != nil {
		resolved.MaxDepth = *opts.MaxDepth
	}
	if opts.Mode != nil {
		resolved.Mode = *opts.Mode
	}
	if opts.RespectRobots != nil {
		resolved.RespectRobots = *opts.RespectRobots
	}
	if opts.PerDomainDelayMs != nil {
		resolved.PerDomainDelayMs = *opts.PerDomainDelayMs
	}
	if opts.SeedFromSitemaps != nil {
		resolved.SeedFromSitemaps = *opts.SeedFromSitemaps
	}
	if opts.MaxSitemapUrls != nil {
		resolved.MaxSitemapUrls = *opts.MaxSitemapUrls
	}
	if opts.AdaptiveDelay != nil {
		resolved.AdaptiveDelay = *opts.AdaptiveDelay
	}
	return resolved
}
