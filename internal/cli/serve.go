package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webxcore/webx/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crawl worker loop, calling processActiveJobsOnce every poll interval",
	Run: func(cmd *cobra.Command, args []string) {
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("serve starting", logging.AttrDurationMs, cfg.PollInterval().Milliseconds())

		ticker := time.NewTicker(cfg.PollInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("serve stopping")
				return
			case <-ticker.C:
				eng.ProcessActiveJobsOnce(ctx)
			}
		}
	},
}
