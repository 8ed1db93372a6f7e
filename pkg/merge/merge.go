// Package merge combines matched record pairs into single records.
//
// Pairs are consumed in the order given (the matcher's ascending (i, j)
// order). A record index is claimed by the first accepted pair that names
// it; later pairs touching a claimed index are skipped, so chains such as
// A~B, B~C merge only A with B. Every unclaimed record passes through, so
// the output always holds len(records) minus the number of accepted pairs.
package merge

import (
	"fmt"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/provenance"
	"github.com/agentstation/recon/pkg/records"
)

// Result is the outcome of one merge call.
type Result struct {
	// Records holds merged rows in accepted-pair order followed by
	// pass-through rows in ascending input order.
	Records []Record
	// Accepted are the pairs that were actually merged.
	Accepted []matcher.Candidate
	// Provenance is the per-field history when tracking is enabled.
	Provenance provenance.Map
}

// Engine merges matched pairs.
type Engine struct {
	trackProvenance bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvenance enables field-level provenance on merged records.
func WithProvenance(enabled bool) Option {
	return func(e *Engine) {
		e.trackProvenance = enabled
	}
}

// New creates a merge Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge applies strategy to every unclaimed candidate pair.
func (e *Engine) Merge(recs []records.Record, cands []matcher.Candidate, strategy Strategy) (*Result, error) {
	merger, err := NewMerger(strategy)
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		if c.IndexA < 0 || c.IndexB >= len(recs) || c.IndexA >= c.IndexB {
			return nil, errors.NewValidationError("matches", fmt.Sprintf("(%d,%d)", c.IndexA, c.IndexB),
				fmt.Sprintf("pair indices must satisfy 0 <= a < b < %d", len(recs)))
		}
	}

	tracker := provenance.NewTracker(e.trackProvenance)
	claimed := make([]bool, len(recs))
	result := &Result{Records: make([]Record, 0, len(recs))}

	for _, c := range cands {
		if claimed[c.IndexA] || claimed[c.IndexB] {
			continue
		}
		claimed[c.IndexA], claimed[c.IndexB] = true, true

		a, b := recs[c.IndexA], recs[c.IndexB]
		fields, contribs := merger.Merge(a, b)

		score := c.Score
		out := Record{
			Record:          records.New(a.Origin, fields),
			MergedFrom:      []string{a.ID(), b.ID()},
			SimilarityScore: &score,
		}

		if tracker.Enabled() {
			out.Provenance = make(provenance.Fields, len(contribs))
			key := out.Key()
			for _, ct := range contribs {
				p := provenance.Provenance{
					Source:        ct.Source,
					Field:         ct.Field,
					Value:         fields[ct.Field],
					Confidence:    score,
					Reason:        ct.Reason,
					PreviousValue: ct.Previous,
				}
				out.Provenance[ct.Field] = p
				tracker.Track(key, ct.Field, p)
			}
		}

		result.Records = append(result.Records, out)
		result.Accepted = append(result.Accepted, c)
	}

	for i, r := range recs {
		if !claimed[i] {
			result.Records = append(result.Records, Passthrough(r))
		}
	}
	result.Provenance = tracker.Map()

	return result, nil
}
