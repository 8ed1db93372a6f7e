// Package jobs provides commands for the reconciliation job history.
package jobs

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/cmd/table"
	"github.com/agentstation/recon/pkg/jobs"
)

// NewCommand creates the jobs command and its subcommands.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"reconciliations"},
		GroupID: "management",
		Short:   "List and inspect recorded reconciliations",
		Long: `Jobs reads the reconciliation history from the job store.

The memory store only lives for one process, so history is only useful
from the CLI with store.driver set to sqlite.`,
	}

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newGetCommand(app))

	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded reconciliations",
		Example: `  recon jobs list --limit 20
  recon jobs list --limit 20 --offset 20 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			page, err := engine.ListJobs(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if page.Jobs == nil {
				page.Jobs = []jobs.Summary{}
			}

			return output.Write(cmd.OutOrStdout(), output.Format(app.OutputFormat()), page,
				func() table.Data { return table.JobsToTableData(page.Jobs) })
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", jobs.DefaultListLimit,
		fmt.Sprintf("Maximum jobs to list (at most %d)", jobs.MaxListLimit))
	cmd.Flags().IntVar(&offset, "offset", 0, "Jobs to skip")

	return cmd
}

func newGetCommand(app application.Application) *cobra.Command {
	var showRecords bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one recorded reconciliation",
		Example: `  recon jobs get 3f2b6c1e-8d4a-4f0e-9b7a-2c5d1e6f7a8b
  recon jobs get 3f2b6c1e-8d4a-4f0e-9b7a-2c5d1e6f7a8b --records`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			job, err := engine.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			format := output.Format(app.OutputFormat())
			if format != output.FormatTable {
				return output.Write(w, format, job, nil)
			}

			f := output.NewFormatter(output.FormatTable)
			if err := f.Format(w, table.JobToTableData(job)); err != nil {
				return err
			}
			if !showRecords {
				return nil
			}
			fmt.Fprintln(w)
			return f.Format(w, table.MergedToTableData(job.Records))
		},
	}

	cmd.Flags().BoolVar(&showRecords, "records", false, "Also show the output records")

	return cmd
}
