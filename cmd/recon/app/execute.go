package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/recon/internal/cmd/output"
)

// Execute runs the command line in args.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand builds the command tree. Persistent flags bind to
// a.flags and are applied before any subcommand runs.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "recon",
		Short:   "Entity reconciliation engine",
		Version: a.build.version,
		Long: `Recon deduplicates, matches and merges batches of entity records
(customers, suppliers, products) using fuzzy field similarity.

Records are read from JSON or YAML files containing an array of flat
objects. Every run is recorded as a reconciliation job that can be
listed and fetched later, and the same engine is available over HTTP
with 'recon serve'.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Reconciliation Commands:"},
		&cobra.Group{ID: "management", Title: "Job and Server Commands:"},
	)

	f, pf := &a.flags, rootCmd.PersistentFlags()
	pf.StringVar(&f.ConfigFile, "config", "", "config file (default is $HOME/.recon.yaml)")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	pf.BoolVarP(&f.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	pf.BoolVar(&f.NoColor, "no-color", false, "disable colored output")
	pf.StringVarP(&f.Format, "format", "o", "", "output format: table, json, yaml")
	pf.StringVar(&f.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.SetVersionTemplate("recon {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand rejects an unknown --format and loads the configuration.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(a.flags.Format); err != nil {
		return err
	}
	return a.load()
}
