package handlers

import (
	"time"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// MatchingConfig selects the fields used for matching and deduplication.
type MatchingConfig struct {
	MatchingFields      []string           `json:"matching_fields"`
	SimilarityFields    []string           `json:"similarity_fields"`
	SimilarityThreshold *float64           `json:"similarity_threshold,omitempty"`
	FieldWeights        map[string]float64 `json:"field_weights,omitempty"`
	UseDefaultWeights   bool               `json:"use_default_weights,omitempty"`
}

// ReconcileRequest is the body of POST /reconcile.
type ReconcileRequest struct {
	Data           []records.Record `json:"data"`
	MatchingConfig MatchingConfig   `json:"matching_config"`
	EntityType     string           `json:"entity_type,omitempty"`
	Threshold      *float64         `json:"threshold,omitempty"`
	Deduplication  *bool            `json:"deduplication,omitempty"`
	MergeStrategy  string           `json:"merge_strategy,omitempty"`
	TimeoutSeconds float64          `json:"timeout_seconds,omitempty"`
}

// toRequest converts the body into an engine request, filling unset
// values from cfg.
func (r ReconcileRequest) toRequest(cfg recon.Config) (recon.Request, error) {
	if r.Data == nil {
		return recon.Request{}, errors.NewValidationError("data", nil, "is required")
	}
	if r.TimeoutSeconds < 0 {
		return recon.Request{}, errors.NewValidationError("timeout_seconds", r.TimeoutSeconds, "must not be negative")
	}

	req := cfg.NewRequest(records.Renumber(r.Data))
	req.MatchFields = r.MatchingConfig.MatchingFields
	req.Similarity.Fields = r.MatchingConfig.SimilarityFields
	req.Similarity.Weights = r.MatchingConfig.FieldWeights
	req.UseDefaultWeights = r.MatchingConfig.UseDefaultWeights
	if r.MatchingConfig.SimilarityThreshold != nil {
		req.Similarity.DedupThreshold = *r.MatchingConfig.SimilarityThreshold
	}
	if r.Threshold != nil {
		req.MatchThreshold = *r.Threshold
		req.Similarity.MatchThreshold = *r.Threshold
	}
	if r.EntityType != "" {
		req.EntityType = r.EntityType
	}
	if r.Deduplication != nil {
		req.Dedupe = *r.Deduplication
	}
	if r.MergeStrategy != "" {
		req.Strategy = merge.Strategy(r.MergeStrategy)
	}
	req.Timeout = time.Duration(r.TimeoutSeconds * float64(time.Second))
	return req, nil
}

// MatchRequest is the body of POST /match.
type MatchRequest struct {
	Data           []records.Record `json:"data"`
	MatchingConfig MatchingConfig   `json:"matching_config"`
	Threshold      *float64         `json:"threshold,omitempty"`
}

// threshold returns the requested threshold or def.
func (r MatchRequest) threshold(def float64) float64 {
	if r.Threshold != nil {
		return *r.Threshold
	}
	return def
}

// DeduplicationConfig controls POST /deduplicate.
type DeduplicationConfig struct {
	SimilarityFields    []string           `json:"similarity_fields"`
	SimilarityThreshold *float64           `json:"similarity_threshold,omitempty"`
	FieldWeights        map[string]float64 `json:"field_weights,omitempty"`
}

// DeduplicateRequest is the body of POST /deduplicate.
type DeduplicateRequest struct {
	Data                []records.Record    `json:"data"`
	DeduplicationConfig DeduplicationConfig `json:"deduplication_config"`
}

// similarity builds the scorer config, using def for an unset threshold.
func (r DeduplicateRequest) similarity(def float64) (similarity.Config, error) {
	cfg := similarity.DefaultConfig()
	cfg.Fields = r.DeduplicationConfig.SimilarityFields
	cfg.Weights = r.DeduplicationConfig.FieldWeights
	cfg.DedupThreshold = def
	if r.DeduplicationConfig.SimilarityThreshold != nil {
		cfg.DedupThreshold = *r.DeduplicationConfig.SimilarityThreshold
	}
	if err := similarity.ValidateThreshold("similarity_threshold", cfg.DedupThreshold); err != nil {
		return similarity.Config{}, err
	}
	if err := similarity.ValidateWeights(cfg.Weights); err != nil {
		return similarity.Config{}, err
	}
	return cfg, nil
}

// ValidationRules are the checks applied by POST /validate-matches.
type ValidationRules struct {
	MinSimilarityScore *float64 `json:"min_similarity_score,omitempty"`
	RequiredFields     []string `json:"required_fields,omitempty"`
}

// ValidateRequest is the body of POST /validate-matches.
type ValidateRequest struct {
	Matches         []matcher.Candidate `json:"matches"`
	ValidationRules ValidationRules     `json:"validation_rules"`
}

// rules converts the body into matcher rules.
func (r ValidateRequest) rules() matcher.Rules {
	rules := matcher.DefaultRules()
	if r.ValidationRules.MinSimilarityScore != nil {
		rules.MinScore = *r.ValidationRules.MinSimilarityScore
	}
	rules.RequiredFields = r.ValidationRules.RequiredFields
	return rules
}
