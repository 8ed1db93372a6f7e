package merge

import (
	"maps"
	"slices"

	"github.com/agentstation/recon/pkg/provenance"
	"github.com/agentstation/recon/pkg/records"
)

// Contribution explains where one merged field came from.
type Contribution struct {
	Field    string
	Source   string
	Reason   provenance.Reason
	Previous *records.Value
}

// Merger combines a matched pair of records under one strategy.
type Merger interface {
	// Strategy returns the strategy the merger implements.
	Strategy() Strategy

	// Merge returns the combined fields and one contribution per output field.
	Merge(a, b records.Record) (map[string]records.Value, []Contribution)
}

// NewMerger returns the Merger for s.
func NewMerger(s Strategy) (Merger, error) {
	switch s {
	case LatestWins:
		return latestWins{}, nil
	case FirstWins:
		return firstWins{}, nil
	case Concatenate:
		return concatenate{}, nil
	default:
		_, err := ParseStrategy(string(s))
		return nil, err
	}
}

type latestWins struct{}

func (latestWins) Strategy() Strategy { return LatestWins }

func (latestWins) Merge(a, b records.Record) (map[string]records.Value, []Contribution) {
	out := make(map[string]records.Value, len(a.Fields)+len(b.Fields))
	origin := make(map[string]Contribution, len(out))
	for k, v := range a.Fields {
		out[k] = v
		origin[k] = Contribution{Field: k, Source: a.ID(), Reason: provenance.ReasonKept}
	}
	for _, k := range b.Keys() {
		v := b.Fields[k]
		if v.IsEmpty() {
			continue
		}
		prev, had := out[k]
		switch {
		case !had:
			origin[k] = Contribution{Field: k, Source: b.ID(), Reason: provenance.ReasonFilled}
		case prev.Equal(v):
			continue
		case prev.IsEmpty():
			origin[k] = Contribution{Field: k, Source: b.ID(), Reason: provenance.ReasonFilled}
		default:
			p := prev
			origin[k] = Contribution{Field: k, Source: b.ID(), Reason: provenance.ReasonOverlay, Previous: &p}
		}
		out[k] = v
	}
	return out, sortedContributions(origin)
}

type firstWins struct{}

func (firstWins) Strategy() Strategy { return FirstWins }

func (firstWins) Merge(a, b records.Record) (map[string]records.Value, []Contribution) {
	out := make(map[string]records.Value, len(a.Fields)+len(b.Fields))
	origin := make(map[string]Contribution, len(out))
	for k, v := range a.Fields {
		out[k] = v
		origin[k] = Contribution{Field: k, Source: a.ID(), Reason: provenance.ReasonKept}
	}
	for _, k := range b.Keys() {
		cur, had := out[k]
		if had && !cur.IsEmpty() {
			continue
		}
		v := b.Fields[k]
		if had && cur.Equal(v) {
			continue
		}
		out[k] = v
		origin[k] = Contribution{Field: k, Source: b.ID(), Reason: provenance.ReasonFilled}
	}
	return out, sortedContributions(origin)
}

type concatenate struct{}

func (concatenate) Strategy() Strategy { return Concatenate }

func (concatenate) Merge(a, b records.Record) (map[string]records.Value, []Contribution) {
	out := make(map[string]records.Value, len(a.Fields)+len(b.Fields))
	origin := make(map[string]Contribution, len(out))

	keys := a.Keys()
	for _, k := range b.Keys() {
		if _, ok := a.Fields[k]; !ok {
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		va, hasA := a.Fields[k]
		vb, hasB := b.Fields[k]
		fullA := hasA && !va.IsEmpty()
		fullB := hasB && !vb.IsEmpty()

		switch {
		case fullA && fullB && va.Text() != vb.Text():
			out[k] = records.String(va.Text() + Separator + vb.Text())
			origin[k] = Contribution{Field: k, Source: a.ID() + "," + b.ID(), Reason: provenance.ReasonConcatenated}
		case fullA:
			out[k] = va
			origin[k] = Contribution{Field: k, Source: a.ID(), Reason: provenance.ReasonKept}
		case fullB:
			out[k] = vb
			origin[k] = Contribution{Field: k, Source: b.ID(), Reason: provenance.ReasonFilled}
		case hasA:
			out[k] = va
			origin[k] = Contribution{Field: k, Source: a.ID(), Reason: provenance.ReasonKept}
		default:
			out[k] = vb
			origin[k] = Contribution{Field: k, Source: b.ID(), Reason: provenance.ReasonFilled}
		}
	}
	return out, sortedContributions(origin)
}

func sortedContributions(m map[string]Contribution) []Contribution {
	out := make([]Contribution, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}
