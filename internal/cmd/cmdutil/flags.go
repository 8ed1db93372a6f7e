// Package cmdutil provides shared flags for recon commands.
package cmdutil

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/config"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// InputFlags name the record file a command reads.
type InputFlags struct {
	File string
}

// AddInputFlags adds the --file flag to a command.
func AddInputFlags(cmd *cobra.Command) *InputFlags {
	flags := &InputFlags{}
	cmd.Flags().StringVarP(&flags.File, "file", "f", "-",
		"Record file (JSON or YAML array of objects); - reads stdin")
	return flags
}

// Load reads the records named by the flags.
func (f *InputFlags) Load() ([]records.Record, error) {
	return records.Load(f.File)
}

// SimilarityFlags hold the field and threshold flags shared by the
// matching commands. Thresholds left unset fall back to the configured
// defaults.
type SimilarityFlags struct {
	MatchFields       []string
	SimilarityFields  []string
	Threshold         float64
	DedupThreshold    float64
	Weights           string
	UseDefaultWeights bool

	cmd *cobra.Command
}

// AddSimilarityFlags adds matching and similarity flags to a command.
func AddSimilarityFlags(cmd *cobra.Command) *SimilarityFlags {
	flags := &SimilarityFlags{cmd: cmd}

	cmd.Flags().StringSliceVar(&flags.MatchFields, "match-fields", nil,
		"Fields compared when matching (e.g., name,email)")
	cmd.Flags().StringSliceVar(&flags.SimilarityFields, "similarity-fields", nil,
		"Fields compared when deduplicating (default: all shared fields)")
	cmd.Flags().Float64VarP(&flags.Threshold, "threshold", "t", 0,
		"Minimum similarity for a match, 0-1 (default: engine.default_similarity_threshold)")
	cmd.Flags().Float64Var(&flags.DedupThreshold, "dedup-threshold", 0,
		"Minimum similarity for duplicates, 0-1 (default: engine.default_dedup_threshold)")
	cmd.Flags().StringVar(&flags.Weights, "weights", "",
		"Field weights as field:weight pairs (e.g., name:0.4,email:0.3)")
	cmd.Flags().BoolVar(&flags.UseDefaultWeights, "default-weights", false,
		"Apply the configured field weights when --weights is not set")

	return flags
}

// MatchThreshold returns --threshold, or def when the flag is unset.
func (f *SimilarityFlags) MatchThreshold(def float64) float64 {
	if f.changed("threshold") {
		return f.Threshold
	}
	return def
}

// Similarity builds the similarity configuration from the flags and the
// engine defaults.
func (f *SimilarityFlags) Similarity(def recon.Config) (similarity.Config, error) {
	weights, err := config.ParseWeights(f.Weights)
	if err != nil {
		return similarity.Config{}, err
	}
	if len(weights) == 0 && f.UseDefaultWeights {
		weights = def.FieldWeights
	}

	cfg := similarity.Config{
		Fields:         f.SimilarityFields,
		Weights:        weights,
		MatchThreshold: f.MatchThreshold(def.DefaultMatchThreshold),
		DedupThreshold: def.DefaultDedupThreshold,
	}
	if f.changed("dedup-threshold") {
		cfg.DedupThreshold = f.DedupThreshold
	}

	if err := similarity.ValidateThreshold("threshold", cfg.MatchThreshold); err != nil {
		return similarity.Config{}, err
	}
	if err := similarity.ValidateThreshold("dedup-threshold", cfg.DedupThreshold); err != nil {
		return similarity.Config{}, err
	}
	if err := similarity.ValidateWeights(weights); err != nil {
		return similarity.Config{}, err
	}
	return cfg, nil
}

func (f *SimilarityFlags) changed(name string) bool {
	return f.cmd != nil && f.cmd.Flags().Changed(name)
}

// ReconcileFlags hold the flags specific to a full reconciliation.
type ReconcileFlags struct {
	*SimilarityFlags
	EntityType string
	Strategy   string
	NoDedupe   bool
	Timeout    time.Duration
}

// AddReconcileFlags adds reconciliation flags, including the similarity
// flags, to a command.
func AddReconcileFlags(cmd *cobra.Command) *ReconcileFlags {
	flags := &ReconcileFlags{SimilarityFlags: AddSimilarityFlags(cmd)}

	cmd.Flags().StringVarP(&flags.EntityType, "entity-type", "e", "",
		"Entity type label for the job (default: customer)")
	cmd.Flags().StringVarP(&flags.Strategy, "strategy", "s", "",
		"Merge strategy: latest_wins, first_wins, concatenate (default: engine.default_merge_strategy)")
	cmd.Flags().BoolVar(&flags.NoDedupe, "no-dedupe", false,
		"Skip the deduplication pass")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0,
		"Bound the reconciliation (e.g., 30s); 0 uses the configured timeout")

	return flags
}

// Request builds an engine request for recs from the flags.
func (f *ReconcileFlags) Request(cfg recon.Config, recs []records.Record) (recon.Request, error) {
	sim, err := f.Similarity(cfg)
	if err != nil {
		return recon.Request{}, err
	}
	if f.Timeout < 0 {
		return recon.Request{}, errors.NewValidationError("timeout", f.Timeout, "must not be negative")
	}

	req := cfg.NewRequest(recs)
	if f.EntityType != "" {
		req.EntityType = f.EntityType
	}
	if f.Strategy != "" {
		strategy, err := merge.ParseStrategy(f.Strategy)
		if err != nil {
			return recon.Request{}, err
		}
		req.Strategy = strategy
	}
	req.Similarity = sim
	req.MatchFields = f.MatchFields
	req.MatchThreshold = sim.MatchThreshold
	req.Dedupe = !f.NoDedupe
	req.UseDefaultWeights = f.UseDefaultWeights
	req.Timeout = f.Timeout
	return req, nil
}
