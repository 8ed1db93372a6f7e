// Command recon deduplicates, matches and merges entity records from the
// command line or over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/agentstation/recon/cmd/recon/app"
)

// Set by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	a, err := app.New(version, commit, date, builtBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(app.ExitFailure)
	}
	os.Exit(a.Run(os.Args[1:], os.Stderr))
}
