package recon

import (
	"time"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/jobs"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/provenance"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// Request is one reconciliation call.
type Request struct {
	// Records is the batch to reconcile.
	Records []records.Record

	// EntityType labels the job. Empty records jobs.DefaultEntityType.
	EntityType string

	// Similarity drives deduplication: Fields, Weights and DedupThreshold.
	// Weights also apply to matching.
	Similarity similarity.Config

	// MatchFields are compared when matching. Empty yields no matches.
	MatchFields []string

	// MatchThreshold is the minimum score for a match.
	MatchThreshold float64

	// Dedupe runs deduplication before matching.
	Dedupe bool

	// Strategy resolves field conflicts. Empty uses the configured default.
	Strategy merge.Strategy

	// UseDefaultWeights applies the configured field weights when
	// Similarity.Weights is empty.
	UseDefaultWeights bool

	// Timeout bounds this call. Zero uses the configured timeout.
	Timeout time.Duration
}

// NewRequest returns a request for recs filled with the configured
// defaults: deduplication on, default thresholds and strategy.
func (c Config) NewRequest(recs []records.Record) Request {
	return Request{
		Records:    recs,
		EntityType: jobs.DefaultEntityType,
		Similarity: similarity.Config{
			MatchThreshold: c.DefaultMatchThreshold,
			DedupThreshold: c.DefaultDedupThreshold,
		},
		MatchThreshold: c.DefaultMatchThreshold,
		Dedupe:         true,
		Strategy:       c.DefaultStrategy,
	}
}

// strategy resolves the request's strategy against the configured default.
func (r Request) strategy(def merge.Strategy) (merge.Strategy, error) {
	if r.Strategy == "" {
		return def, nil
	}
	return merge.ParseStrategy(string(r.Strategy))
}

// validate rejects bad requests before any work starts.
func (r Request) validate() error {
	if err := similarity.ValidateThreshold("match_threshold", r.MatchThreshold); err != nil {
		return err
	}
	if r.Dedupe {
		if err := similarity.ValidateThreshold("dedup_threshold", r.Similarity.DedupThreshold); err != nil {
			return err
		}
	}
	if err := similarity.ValidateWeights(r.Similarity.Weights); err != nil {
		return err
	}
	if r.Timeout < 0 {
		return errors.NewValidationError("timeout", r.Timeout, "must not be negative")
	}
	return nil
}

// Result is the outcome of a completed reconciliation. It carries the
// stored job plus the details that are not persisted.
type Result struct {
	jobs.Job

	// Matches are all candidate pairs at or above the match threshold,
	// including pairs skipped because a record was already claimed.
	Matches []matcher.Candidate `json:"matches,omitempty" yaml:"matches,omitempty"`

	// Merged are the pairs from Matches that were actually merged.
	Merged []matcher.Candidate `json:"merged_pairs,omitempty" yaml:"merged_pairs,omitempty"`

	// Provenance is present when provenance tracking is enabled.
	Provenance provenance.Map `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}
