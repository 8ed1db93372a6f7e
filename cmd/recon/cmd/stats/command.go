// Package stats provides the stats command.
package stats

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/cmd/table"
)

// NewCommand creates the stats command using app context.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		GroupID: "management",
		Short:   "Show job totals and resource usage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			s, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}

			return output.Write(cmd.OutOrStdout(), output.Format(app.OutputFormat()), s,
				func() table.Data { return table.StatsToTableData(s) })
		},
	}
}
