// Package dedup removes exact and near duplicates from a record batch.
//
// The exact pass keeps the first occurrence of every distinct record.
// The near pass then walks surviving records in order and drops any later
// record that scores at or above the dedup threshold against an earlier
// survivor. Near-duplicate removal is not transitive: if A~B and B~C but
// not A~C, B is dropped because of A and C survives.
package dedup

import (
	"context"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// Deduplicator removes duplicate records.
type Deduplicator struct {
	scorer *similarity.Scorer
}

// New creates a Deduplicator. A nil scorer gets an uncached one.
func New(scorer *similarity.Scorer) *Deduplicator {
	if scorer == nil {
		scorer, _ = similarity.New(similarity.WithCacheSize(0))
	}
	return &Deduplicator{scorer: scorer}
}

// Exact drops records whose canonical key was already seen, keeping the
// first occurrence and preserving order.
func Exact(recs []records.Record) []records.Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		key := r.CanonicalKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Deduplicate runs the exact pass and, when cfg.Fields is non-empty, the
// near-duplicate pass. Output order follows input order. The input slice
// is not modified.
func (d *Deduplicator) Deduplicate(ctx context.Context, recs []records.Record, cfg similarity.Config) ([]records.Record, error) {
	if err := similarity.ValidateThreshold("dedup_threshold", cfg.DedupThreshold); err != nil {
		return nil, err
	}
	if err := similarity.ValidateWeights(cfg.Weights); err != nil {
		return nil, err
	}

	out := Exact(recs)
	if len(cfg.Fields) == 0 || len(out) < 2 {
		return out, nil
	}

	removed := make([]bool, len(out))
	for i := range out {
		if removed[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.FromContext("deduplicate", err)
		}
		for j := i + 1; j < len(out); j++ {
			if removed[j] {
				continue
			}
			if d.scorer.Score(out[i], out[j], cfg.Fields, cfg.Weights) >= cfg.DedupThreshold {
				removed[j] = true
			}
		}
	}

	kept := out[:0:0]
	for i, r := range out {
		if !removed[i] {
			kept = append(kept, r)
		}
	}
	return kept, nil
}
