package merge

import (
	"encoding/json"
	"strings"

	"github.com/agentstation/recon/pkg/provenance"
	"github.com/agentstation/recon/pkg/records"
)

// Reserved keys added to the flat encoding of a merged record.
const (
	KeyMergedFrom      = "_merged_from"
	KeySimilarityScore = "_similarity_score"
	KeyProvenance      = "_provenance"
)

// Record is one output row of a merge: either two input records combined,
// or a single unmatched record passed through unchanged.
type Record struct {
	records.Record

	// MergedFrom holds the ids of the two source records; nil for pass-through.
	MergedFrom []string
	// SimilarityScore is the score of the pair that was merged; nil for pass-through.
	SimilarityScore *float64
	// Provenance is set for merged records when tracking is enabled.
	Provenance provenance.Fields
}

// Passthrough wraps an unmatched record.
func Passthrough(r records.Record) Record {
	return Record{Record: r.Clone()}
}

// IsMerged reports whether the row came from a pair.
func (r Record) IsMerged() bool {
	return len(r.MergedFrom) > 0
}

// Key identifies a merged record by its sources, or a pass-through by its id.
func (r Record) Key() string {
	if r.IsMerged() {
		return strings.Join(r.MergedFrom, "+")
	}
	return r.ID()
}

// Map returns the flat form: the record's fields plus the reserved keys.
func (r Record) Map() map[string]any {
	m := r.Record.Map()
	if r.IsMerged() {
		m[KeyMergedFrom] = r.MergedFrom
	}
	if r.SimilarityScore != nil {
		m[KeySimilarityScore] = *r.SimilarityScore
	}
	if len(r.Provenance) > 0 {
		m[KeyProvenance] = r.Provenance
	}
	return m
}

// MarshalJSON encodes the record as a flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes the flat form produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Record{Record: records.New(0, nil)}
	for k, msg := range raw {
		switch k {
		case KeyMergedFrom:
			if err := json.Unmarshal(msg, &out.MergedFrom); err != nil {
				return err
			}
		case KeySimilarityScore:
			var score float64
			if err := json.Unmarshal(msg, &score); err != nil {
				return err
			}
			out.SimilarityScore = &score
		case KeyProvenance:
			if err := json.Unmarshal(msg, &out.Provenance); err != nil {
				return err
			}
		default:
			var v records.Value
			if err := json.Unmarshal(msg, &v); err != nil {
				return err
			}
			out.Fields[k] = v
		}
	}
	*r = out
	return nil
}

// MarshalYAML implements the goccy/go-yaml InterfaceMarshaler.
func (r Record) MarshalYAML() (any, error) {
	m, err := r.Record.MarshalYAML()
	if err != nil {
		return nil, err
	}
	out := m.(map[string]any)
	if r.IsMerged() {
		out[KeyMergedFrom] = r.MergedFrom
	}
	if r.SimilarityScore != nil {
		out[KeySimilarityScore] = *r.SimilarityScore
	}
	if len(r.Provenance) > 0 {
		out[KeyProvenance] = r.Provenance
	}
	return out, nil
}
