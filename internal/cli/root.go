// Package cmd wires webx's cobra command tree: start/status/pages/serve/
// version. Flags override WEBX_*/CRAWLER_POLL_MS environment variables,
// which override appconfig.WithDefault()'s built-in defaults.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/webxcore/webx/internal/appconfig"
	"github.com/webxcore/webx/internal/build"
	"github.com/webxcore/webx/internal/engine"
	"github.com/webxcore/webx/internal/extractor"
	"github.com/webxcore/webx/internal/fetcher"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/internal/robots"
	"github.com/webxcore/webx/internal/store"
)

var (
	dbPath       string
	userAgent    string
	pollInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "webx",
	Short: "A local-only crawl backend for LLM web-automation agents.",
	Long: `webx crawls sites on behalf of an LLM agent: it fetches pages,
extracts a stable, structured representation of each one (headings, key
paragraphs, links, forms, synthesized actions), and persists the crawl's
frontier and results so an agent can poll a job instead of blocking on it.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by cmd/webx's main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "sqlite database path (overrides "+appconfig.EnvDBPath+")")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "crawler user agent (overrides "+appconfig.EnvUserAgent+")")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 0, "serve's worker tick period (overrides "+appconfig.EnvPollMs+")")

	rootCmd.AddCommand(startCmd, statusCmd, pagesCmd, serveCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the webx version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.FullVersion())
	},
}

// loadConfig resolves appconfig.Config from defaults, environment, then the
// persistent flags above, in that override order.
func loadConfig() (appconfig.Config, error) {
	builder := appconfig.WithDefault().WithEnv()
	if dbPath != "" {
		builder = builder.WithDBPath(dbPath)
	}
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	if pollInterval > 0 {
		builder = builder.WithPollInterval(pollInterval)
	}
	return builder.Build()
}

// newEngine opens the store and wires an engine.Engine from cfg. Callers
// must close the returned store's underlying *store.Store via closer().
func newEngine(cfg appconfig.Config, logger *logging.Logger) (*engine.Engine, func() error, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, nil, err
	}
	robot := robots.NewRobot(logger, cfg.UserAgent(), 0)
	htmlFetcher := fetcher.NewHtmlFetcher(logger)
	extract := extractor.NewExtractor(logger, extractor.DefaultExtractParam())
	eng := engine.New(st, robot, &htmlFetcher, extract, cfg, logger)
	return eng, st.Close, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
