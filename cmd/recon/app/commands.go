package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/recon/cmd/dedupe"
	"github.com/agentstation/recon/cmd/recon/cmd/jobs"
	"github.com/agentstation/recon/cmd/recon/cmd/man"
	"github.com/agentstation/recon/cmd/recon/cmd/match"
	"github.com/agentstation/recon/cmd/recon/cmd/reconcile"
	"github.com/agentstation/recon/cmd/recon/cmd/serve"
	"github.com/agentstation/recon/cmd/recon/cmd/stats"
	"github.com/agentstation/recon/cmd/recon/cmd/validate"
	"github.com/agentstation/recon/cmd/recon/cmd/version"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(reconcile.NewCommand(a))
	rootCmd.AddCommand(match.NewCommand(a))
	rootCmd.AddCommand(dedupe.NewCommand(a))
	rootCmd.AddCommand(validate.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(jobs.NewCommand(a))
	rootCmd.AddCommand(stats.NewCommand(a))
	rootCmd.AddCommand(serve.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(version.NewCommand(a))
	rootCmd.AddCommand(man.NewCommand())
}
