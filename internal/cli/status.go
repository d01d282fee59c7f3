package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webxcore/webx/internal/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print a crawl job's status and queue stats",
	Args:  cobra.ExactArgs(1),
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

		status, statusErr := eng.Status(context.Background(), args[0])
		if statusErr != nil {
			fatalf("%s", statusErr)
		}

		fmt.Printf("job:      %s\n", status.Job.ID)
		fmt.Printf("status:   %s\n", status.Job.Status)
		fmt.Printf("seeds:    %v\n", status.Job.SeedURLs)
		fmt.Printf("pending:  %d\n", status.Stats.Pending)
		fmt.Printf("running:  %d\n", status.Stats.Processing)
		fmt.Printf("done:     %d\n", status.Stats.Done)
		fmt.Printf("failed:   %d\n", status.Stats.Failed)
	},
}
