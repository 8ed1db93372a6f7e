// Package validate provides the validate command.
package validate

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/cmd/recon/cmd/match"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/cmd/table"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// Result is the structured output of the validate command.
type Result struct {
	Validations []matcher.Validation `json:"validated_matches" yaml:"validated_matches"`
	Total       int                  `json:"total" yaml:"total"`
	Valid       int                  `json:"valid" yaml:"valid"`
}

// NewCommand creates the validate command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var (
		file     string
		minScore float64
		required []string
	)

	cmd := &cobra.Command{
		Use:     "validate",
		GroupID: "core",
		Short:   "Check match pairs against validation rules",
		Long: `Validate checks candidate pairs against a minimum score and a set of
fields that must have matched. Input is a JSON or YAML array of pairs,
or the output of 'recon match -o json'.`,
		Example: `  recon match -f customers.json --match-fields name,email -o json > matches.json
  recon validate -f matches.json --min-score 0.9 --required-fields email`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := similarity.ValidateThreshold("min-score", minScore); err != nil {
				return err
			}

			cands, err := LoadCandidates(file)
			if err != nil {
				return err
			}

			engine, err := app.Engine()
			if err != nil {
				return err
			}

			vals := engine.ValidateMatches(cands, matcher.Rules{
				MinScore:       minScore,
				RequiredFields: required,
			})

			res := Result{Validations: vals, Total: len(vals)}
			for _, v := range vals {
				if v.Valid {
					res.Valid++
				}
			}
			return output.Write(cmd.OutOrStdout(), output.Format(app.OutputFormat()), res,
				func() table.Data { return table.ValidationsToTableData(vals) })
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-",
		"Match file (JSON or YAML); - reads stdin")
	cmd.Flags().Float64Var(&minScore, "min-score", matcher.DefaultMinScore,
		"Minimum similarity score for a valid match (0-1)")
	cmd.Flags().StringSliceVar(&required, "required-fields", nil,
		"Fields that must be among each pair's matching fields")

	return cmd
}

// LoadCandidates reads match pairs from path, accepting either a bare
// array or an object with a "matches" array. "-" reads standard input.
func LoadCandidates(path string) ([]matcher.Candidate, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		var buf bytes.Buffer
		_, err = buf.ReadFrom(os.Stdin)
		data = buf.Bytes()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return DecodeCandidates(data, records.FormatFromPath(path))
}

// DecodeCandidates parses match pairs in format.
func DecodeCandidates(data []byte, format records.Format) ([]matcher.Candidate, error) {
	trimmed := bytes.TrimSpace(data)
	wrapped := len(trimmed) > 0 && trimmed[0] == '{'

	var (
		cands []matcher.Candidate
		res   match.Result
		err   error
	)
	switch {
	case format == records.FormatYAML && !wrapped:
		// YAML mappings do not need braces, so try the bare form first.
		if err = yaml.Unmarshal(data, &cands); err != nil {
			err = yaml.Unmarshal(data, &res)
			cands = res.Matches
		}
	case format == records.FormatYAML:
		err = yaml.Unmarshal(data, &res)
		cands = res.Matches
	case wrapped:
		err = json.Unmarshal(data, &res)
		cands = res.Matches
	default:
		err = json.Unmarshal(data, &cands)
	}
	if err != nil {
		return nil, errors.WrapParse(string(format), "", err)
	}
	return cands, nil
}
