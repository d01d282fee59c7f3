package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webxcore/webx/internal/appconfig"
	"github.com/webxcore/webx/internal/logging"
)

var (
	seedURLs         []string
	maxPages         int
	maxDepth         int
	mode             string
	allowDomains     []string
	denyDomains      []string
	respectRobots    bool
	noRespectRobots  bool
	perDomainDelayMs int
	seedFromSitemaps bool
	noSeedFromSitemaps bool
	maxSitemapUrls   int
	adaptiveDelay    bool
	noAdaptiveDelay  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new crawl job from one or more seed URLs",
	Run: func(cmd *cobra.Command, args []string) {
		if len(seedURLs) == 0 {
			fatalf("--seed-url is required (repeat the flag for multiple seeds)")
		}

		cfg, err := loadConfig()
		if err != nil {
			fatalf("%s", err)
		}
		logger := logging.NewStderr()
		eng, closeStore, err := newEngine(cfg, logger)
		if err != nil {
			fatalf("%s", err)
		}
		defer closeStore()

		jobID, startErr := eng.Start(context.Background(), seedURLs, buildStartOptions(cmd))
		if startErr != nil {
			fatalf("%s", startErr)
		}
		fmt.Println(jobID)
	},
}

// buildStartOptions maps the changed flags on cmd into an
// appconfig.StartOptions, leaving every unset field nil so
// Config.ResolveOptions falls back to the process default.
func buildStartOptions(cmd *cobra.Command) appconfig.StartOptions {
	var opts appconfig.StartOptions
	flags := cmd.Flags()

	if flags.Changed("max-pages") {
		opts.MaxPages = &maxPages
	}
	if flags.Changed("max-depth") {
		opts.MaxDepth = &maxDepth
	}
	if flags.Changed("mode") {
		opts.Mode = &mode
	}
	if len(allowDomains) > 0 {
		opts.AllowDomains = allowDomains
	}
	if len(denyDomains) > 0 {
		opts.DenyDomains = denyDomains
	}
	if flags.Changed("respect-robots") {
		opts.RespectRobots = &respectRobots
	}
	if flags.Changed("no-respect-robots") {
		v := !noRespectRobots
		opts.RespectRobots = &v
	}
	if flags.Changed("per-domain-delay-ms") {
		opts.PerDomainDelayMs = &perDomainDelayMs
	}
	if flags.Changed("seed-from-sitemaps") {
		opts.SeedFromSitemaps = &seedFromSitemaps
	}
	if flags.Changed("no-seed-from-sitemaps") {
		v := !noSeedFromSitemaps
		opts.SeedFromSitemaps = &v
	}
	if flags.Changed("max-sitemap-urls") {
		opts.MaxSitemapUrls = &maxSitemapUrls
	}
	if flags.Changed("adaptive-delay") {
		opts.AdaptiveDelay = &adaptiveDelay
	}
	if flags.Changed("no-adaptive-delay") {
		v := !noAdaptiveDelay
		opts.AdaptiveDelay = &v
	}
	return opts
}

func init() {
	startCmd.Flags().StringArrayVar(&seedURLs, "seed-url", nil, "a starting URL (repeatable)")
	startCmd.Flags().IntVar(&maxPages, "max-pages", 100, "maximum pages to fetch (1-10000)")
	startCmd.Flags().IntVar(&maxDepth, "max-depth", 2, "maximum link depth from a seed (0-10)")
	startCmd.Flags().StringVar(&mode, "mode", "compact", "extraction mode: compact or full")
	startCmd.Flags().StringArrayVar(&allowDomains, "allow-domain", nil, "restrict the crawl to these hostnames (repeatable)")
	startCmd.Flags().StringArrayVar(&denyDomains, "deny-domain", nil, "exclude these hostnames (repeatable)")
	startCmd.Flags().BoolVar(&respectRobots, "respect-robots", true, "honor robots.txt")
	startCmd.Flags().BoolVar(&noRespectRobots, "no-respect-robots", false, "ignore robots.txt")
	startCmd.Flags().IntVar(&perDomainDelayMs, "per-domain-delay-ms", 500, "minimum delay between requests to the same host")
	startCmd.Flags().BoolVar(&seedFromSitemaps, "seed-from-sitemaps", true, "seed the frontier from each origin's sitemap")
	startCmd.Flags().BoolVar(&noSeedFromSitemaps, "no-seed-from-sitemaps", false, "skip sitemap seeding")
	startCmd.Flags().IntVar(&maxSitemapUrls, "max-sitemap-urls", 200, "maximum URLs to pull from a sitemap")
	startCmd.Flags().BoolVar(&adaptiveDelay, "adaptive-delay", true, "scale politeness delay by observed host latency")
	startCmd.Flags().BoolVar(&noAdaptiveDelay, "no-adaptive-delay", false, "use a fixed per-domain delay")
}
