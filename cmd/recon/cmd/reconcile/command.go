// Package reconcile provides the reconcile command.
package reconcile

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/cmd/cmdutil"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/cmd/table"
	"github.com/agentstation/recon/internal/fieldpattern"
)

// NewCommand creates the reconcile command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var (
		input      *cmdutil.InputFlags
		flags      *cmdutil.ReconcileFlags
		provenance bool
		fields     []string
	)

	cmd := &cobra.Command{
		Use:     "reconcile",
		Aliases: []string{"run"},
		GroupID: "core",
		Short:   "Deduplicate, match and merge a batch of records",
		Long: `Reconcile runs the full pipeline over a batch of records:

  1. Deduplicate: drop exact duplicates, then near duplicates scoring at
     or above --dedup-threshold on the similarity fields.
  2. Match: score every remaining pair on --match-fields and keep pairs
     at or above --threshold.
  3. Merge: combine each record with its best partner using the merge
     strategy; unmatched records pass through unchanged.

The run is recorded as a reconciliation job.`,
		Example: `  # Match customers on name and email
  recon reconcile -f customers.json --match-fields name,email

  # Weighted matching, keep the first record's values, JSON output
  recon reconcile -f customers.yaml --match-fields name,email,phone \
    --weights name:0.4,email:0.4,phone:0.2 -s first_wins -o json

  # Show which record supplied each merged field
  recon reconcile -f customers.json --match-fields email --provenance`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, err := fieldpattern.CompileSet(fields)
			if err != nil {
				return err
			}

			recs, err := input.Load()
			if err != nil {
				return err
			}

			engine, err := app.Engine()
			if err != nil {
				return err
			}

			req, err := flags.Request(engine.Config(), recs)
			if err != nil {
				return err
			}

			app.Logger().Debug().
				Int("records", len(recs)).
				Strs("match_fields", req.MatchFields).
				Str("strategy", string(req.Strategy)).
				Msg("Reconciling")

			result, err := engine.Reconcile(cmd.Context(), req)
			if err != nil {
				return err
			}

			format := output.Format(app.OutputFormat())
			if format != output.FormatTable {
				return output.Write(cmd.OutOrStdout(), format, result, nil)
			}
			return writeTables(cmd.OutOrStdout(), result, provenance, selected)
		},
	}

	input = cmdutil.AddInputFlags(cmd)
	flags = cmdutil.AddReconcileFlags(cmd)
	cmd.Flags().BoolVar(&provenance, "provenance", false,
		"Show field provenance for merged records (requires engine.provenance)")
	cmd.Flags().StringSliceVar(&fields, "provenance-fields", nil,
		"Limit provenance to fields matching these glob or regex patterns (e.g., addr*)")

	return cmd
}

// writeTables renders the job summary, the output records and optionally
// their provenance as consecutive tables.
func writeTables(w io.Writer, result *recon.Result, provenance bool, fields *fieldpattern.Set) error {
	f := output.NewFormatter(output.FormatTable)
	if err := f.Format(w, table.JobToTableData(&result.Job)); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := f.Format(w, table.MergedToTableData(result.Records)); err != nil {
		return err
	}
	if !provenance {
		return nil
	}
	data := table.ProvenanceToTableData(result.Records, fields)
	fmt.Fprintln(w)
	if len(data.Rows) == 0 {
		fmt.Fprintln(w, "No provenance recorded. Enable engine.provenance to track merged fields.")
		return nil
	}
	return f.Format(w, data)
}
