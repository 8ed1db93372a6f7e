// Package match provides the match command.
package match

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/cmd/cmdutil"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/cmd/table"
	"github.com/agentstation/recon/pkg/matcher"
)

// Result is the structured output of the match command. It is also the
// input shape accepted by the validate command.
type Result struct {
	Matches []matcher.Candidate `json:"matches" yaml:"matches"`
	Count   int                 `json:"count" yaml:"count"`
}

// NewCommand creates the match command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var (
		input *cmdutil.InputFlags
		flags *cmdutil.SimilarityFlags
	)

	cmd := &cobra.Command{
		Use:     "match",
		GroupID: "core",
		Short:   "Find matching record pairs without merging",
		Long: `Match scores every pair of records on --match-fields and prints the
pairs scoring at or above --threshold in input order. Nothing is merged
and no job is recorded.

Save the JSON output to check pairs against rules with 'recon validate'.`,
		Example: `  recon match -f customers.json --match-fields name,email -t 0.85
  recon match -f customers.json --match-fields name,email -o json > matches.json`,
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

			cands, err := engine.FindMatches(cmd.Context(), recs, flags.MatchFields, sim.MatchThreshold)
			if err != nil {
				return err
			}
			if cands == nil {
				cands = []matcher.Candidate{}
			}

			res := Result{Matches: cands, Count: len(cands)}
			return output.Write(cmd.OutOrStdout(), output.Format(app.OutputFormat()), res,
				func() table.Data { return table.CandidatesToTableData(cands) })
		},
	}

	input = cmdutil.AddInputFlags(cmd)
	flags = cmdutil.AddSimilarityFlags(cmd)

	return cmd
}
