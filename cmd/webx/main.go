// Command webx is the CLI entrypoint for the crawl backend: start jobs,
// poll status and pages, and run the worker loop that advances them.
package main

import (
	cmd "github.com/webxcore/webx/internal/cli"
)

func main() {
	cmd.Execute()
}
