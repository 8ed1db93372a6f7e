// Package dedupe provides the dedupe command.
package dedupe

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/cmd/cmdutil"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/cmd/table"
	"github.com/agentstation/recon/pkg/records"
)

// Result is the structured output of the dedupe command.
type Result struct {
	Records           []records.Record `json:"data" yaml:"data"`
	OriginalCount     int              `json:"original_count" yaml:"original_count"`
	DeduplicatedCount int              `json:"deduplicated_count" yaml:"deduplicated_count"`
}

// NewCommand creates the dedupe command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var (
		input *cmdutil.InputFlags
		flags *cmdutil.SimilarityFlags
	)

	cmd := &cobra.Command{
		Use:     "dedupe",
		Aliases: []string{"deduplicate"},
		GroupID: "core",
		Short:   "Remove exact and near-duplicate records",
		Long: `Dedupe drops exact duplicates, then drops any record scoring at or
above --dedup-threshold against an earlier kept record. Input order is
preserved and no job is recorded.`,
		Example: `  recon dedupe -f customers.json
  recon dedupe -f customers.json --similarity-fields name,email --dedup-threshold 0.85`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := input.Load()
			if err != nil {
				return err
			}

			engine, err := app.Engine()
			if err != nil {
				return err
			}

			sim, err := flags.Similarity(engine.Config())
			if err != nil {
				return err
			}

			kept, err := engine.Deduplicate(cmd.Context(), recs, sim)
			if err != nil {
				return err
			}
			if kept == nil {
				kept = []records.Record{}
			}

			app.Logger().Debug().
				Int("original", len(recs)).
				Int("kept", len(kept)).
				Msg("Deduplicated")

			res := Result{Records: kept, OriginalCount: len(recs), DeduplicatedCount: len(kept)}
			return output.Write(cmd.OutOrStdout(), output.Format(app.OutputFormat()), res,
				func() table.Data { return table.RecordsToTableData(kept) })
		},
	}

	input = cmdutil.AddInputFlags(cmd)
	flags = cmdutil.AddSimilarityFlags(cmd)

	return cmd
}
