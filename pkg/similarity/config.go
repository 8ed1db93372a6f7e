package similarity

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/agentstation/recon/pkg/errors"
)

// Default thresholds.
const (
	DefaultMatchThreshold = 0.8
	DefaultDedupThreshold = 0.9
)

// Config selects the fields to compare and how strongly each counts.
type Config struct {
	// Fields are compared in order. An empty list disables near-duplicate
	// detection and is rejected by the matcher.
	Fields []string `json:"fields" yaml:"fields" mapstructure:"fields"`

	// Weights are optional per-field weights. A field missing from a
	// non-empty map weighs 1.0; a zero weight excludes the field.
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty" mapstructure:"weights"`

	// MatchThreshold is the minimum score for a pair to be reported as a match.
	MatchThreshold float64 `json:"match_threshold" yaml:"match_threshold" mapstructure:"match_threshold"`

	// DedupThreshold is the minimum score for a later record to be dropped
	// as a near duplicate of an earlier one.
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold" mapstructure:"dedup_threshold"`
}

// DefaultConfig returns a config with the default thresholds and no fields.
func DefaultConfig() Config {
	return Config{
		MatchThreshold: DefaultMatchThreshold,
		DedupThreshold: DefaultDedupThreshold,
	}
}

// DefaultWeights returns the standard contact-record weighting.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"name":    0.4,
		"email":   0.3,
		"phone":   0.2,
		"address": 0.1,
	}
}

// Validate checks thresholds and weights.
func (c Config) Validate() error {
	if err := ValidateThreshold("match_threshold", c.MatchThreshold); err != nil {
		return err
	}
	if err := ValidateThreshold("dedup_threshold", c.DedupThreshold); err != nil {
		return err
	}
	return ValidateWeights(c.Weights)
}

// ValidateThreshold rejects thresholds outside [0, 1].
func ValidateThreshold(name string, threshold float64) error {
	if threshold < 0 || threshold > 1 || threshold != threshold {
		return errors.NewValidationError(name, threshold, "must be between 0 and 1")
	}
	return nil
}

// ValidateWeights rejects negative, NaN and infinite weights.
func ValidateWeights(weights map[string]float64) error {
	for _, field := range slices.Sorted(maps.Keys(weights)) {
		if w := weights[field]; w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return errors.NewValidationError("weights", w, fmt.Sprintf("weight for %q must be a finite non-negative number", field))
		}
	}
	return nil
}
