package matcher

import (
	"fmt"
	"slices"
)

// DefaultMinScore is the minimum score a match must carry to validate.
const DefaultMinScore = 0.8

// Rules are the checks applied by Validate.
type Rules struct {
	// MinScore rejects matches scoring below it.
	MinScore float64 `json:"min_similarity_score" yaml:"min_similarity_score"`
	// RequiredFields must all have been part of the comparison.
	RequiredFields []string `json:"required_fields,omitempty" yaml:"required_fields,omitempty"`
}

// DefaultRules returns rules with the default minimum score.
func DefaultRules() Rules {
	return Rules{MinScore: DefaultMinScore}
}

// Validation is a candidate annotated with the outcome of the rules.
type Validation struct {
	Candidate
	Valid  bool     `json:"is_valid" yaml:"is_valid"`
	Errors []string `json:"validation_errors" yaml:"validation_errors"`
}

// Validate checks each candidate against rules. It never drops candidates;
// failures are reported on the returned entries in input order.
func Validate(cands []Candidate, rules Rules) []Validation {
	out := make([]Validation, len(cands))
	for i, c := range cands {
		v := Validation{Candidate: c, Valid: true, Errors: []string{}}
		if c.Score < rules.MinScore {
			v.Valid = false
			v.Errors = append(v.Errors, fmt.Sprintf("similarity score too low: %.4f < %.4f", c.Score, rules.MinScore))
		}
		for _, f := range rules.RequiredFields {
			if !slices.Contains(c.Fields, f) {
				v.Valid = false
				v.Errors = append(v.Errors, fmt.Sprintf("required field %q was not compared", f))
			}
		}
		out[i] = v
	}
	return out
}
