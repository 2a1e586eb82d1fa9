/*
main.go - Application entry point

PURPOSE:
  The dutyengine command. "serve" runs the HTTP API over a SQLite log;
  "check" evaluates a JSON log file once and prints the findings.

COMMANDS:
  serve   Start the HTTP server with graceful shutdown
  check   Evaluate a log file (see api.LogDocument)

CONFIGURATION:
  Defaults < YAML file named by DUTY_CONFIG < DUTY_* env vars < flags.
  See config/config.go for the keys.

EXAMPLES:
  # Run with file database
  dutyengine serve --db ./data/duty.db

  # Run with in-memory database on another port
  dutyengine serve --db :memory: --addr :3000

  # Check a log as of a given instant
  dutyengine check --file roster.json --at 2025-03-20T12:00

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration loader
*/
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dutyengine",
		Short:        "Aircrew duty compliance and fatigue engine",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCheckCmd())
	return root
}
