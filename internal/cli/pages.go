package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/webxcore/webx/internal/logging"
)

var pagesLimit int

var pagesCmd = &cobra.Command{
	Use:   "pages <job-id>",
	Short: "Print pages crawled so far for a job, as a JSON array",
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

		pages, pagesErr := eng.Next(context.Background(), args[0], pagesLimit)
		if pagesErr != nil {
			fatalf("%s", pagesErr)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pages); err != nil {
			fatalf("%s", err)
		}
	},
}

func init() {
	pagesCmd.Flags().IntVar(&pagesLimit, "limit", 50, "maximum number of pages to return")
}
