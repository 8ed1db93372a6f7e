// Package matcher finds pairs of records that likely describe the same
// entity. Every unordered pair (i, j) with i < j is scored, so the cost is
// quadratic in the batch size; the batch ceiling is the only guard.
package matcher

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/logging"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// DefaultMaxBatchSize is the default batch ceiling.
const DefaultMaxBatchSize = 10000

// Candidate is a pair of records that scored at or above the match threshold.
type Candidate struct {
	IndexA int      `json:"entity_1_index" yaml:"entity_1_index"`
	IndexB int      `json:"entity_2_index" yaml:"entity_2_index"`
	IDA    string   `json:"entity_1_id" yaml:"entity_1_id"`
	IDB    string   `json:"entity_2_id" yaml:"entity_2_id"`
	Score  float64  `json:"similarity_score" yaml:"similarity_score"`
	Fields []string `json:"matching_fields" yaml:"matching_fields"`
}

// Query describes one matching run.
type Query struct {
	Fields    []string
	Weights   map[string]float64
	Threshold float64
}

// Matcher scores record pairs in parallel.
type Matcher struct {
	scorer       *similarity.Scorer
	maxBatchSize int
	workers      int
}

// Option configures a Matcher.
type Option func(*options) error

type options struct {
	scorer       *similarity.Scorer
	maxBatchSize int
	workers      int
}

// WithScorer shares a scorer (and its cache) with the matcher.
func WithScorer(s *similarity.Scorer) Option {
	return func(o *options) error {
		o.scorer = s
		return nil
	}
}

// WithMaxBatchSize sets the largest batch FindMatches accepts.
// Zero or less removes the ceiling.
func WithMaxBatchSize(n int) Option {
	return func(o *options) error {
		o.maxBatchSize = n
		return nil
	}
}

// WithWorkers bounds the worker pool. Zero or less uses one worker per CPU.
func WithWorkers(n int) Option {
	return func(o *options) error {
		o.workers = n
		return nil
	}
}

// New creates a Matcher.
func New(opts ...Option) (*Matcher, error) {
	o := &options{maxBatchSize: DefaultMaxBatchSize}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.scorer == nil {
		s, err := similarity.New()
		if err != nil {
			return nil, err
		}
		o.scorer = s
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}
	return &Matcher{
		scorer:       o.scorer,
		maxBatchSize: o.maxBatchSize,
		workers:      o.workers,
	}, nil
}

// MaxBatchSize returns the configured batch ceiling.
func (m *Matcher) MaxBatchSize() int {
	return m.maxBatchSize
}

// CheckBatch fails with a BatchTooLargeError when n exceeds the ceiling.
func (m *Matcher) CheckBatch(n int) error {
	if m.maxBatchSize > 0 && n > m.maxBatchSize {
		return errors.NewBatchTooLargeError(n, m.maxBatchSize)
	}
	return nil
}

// FindMatches returns every pair scoring at or above threshold over fields,
// ordered by (IndexA, IndexB).
func (m *Matcher) FindMatches(ctx context.Context, recs []records.Record, fields []string, threshold float64) ([]Candidate, error) {
	return m.Find(ctx, recs, Query{Fields: fields, Threshold: threshold})
}

// Find is FindMatches with optional field weights.
//
// Each outer row is scored by its own task on a bounded pool and writes
// only its own result slot, so concatenating the slots in row order yields
// the (i, j) ordering without a sort. Cancellation or deadline expiry
// discards all partial results.
func (m *Matcher) Find(ctx context.Context, recs []records.Record, q Query) ([]Candidate, error) {
	if err := m.CheckBatch(len(recs)); err != nil {
		return nil, err
	}
	if err := similarity.ValidateThreshold("match_threshold", q.Threshold); err != nil {
		return nil, err
	}
	if err := similarity.ValidateWeights(q.Weights); err != nil {
		return nil, err
	}
	if len(q.Fields) == 0 || len(recs) < 2 {
		return []Candidate{}, nil
	}

	logger := logging.FromContext(ctx)
	start := time.Now()

	rows := make([][]Candidate, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i := 0; i < len(recs)-1; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return m.scoreRow(gctx, recs, i, q, &rows[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.FromContext("match", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext("match", err)
	}

	var total int
	for _, row := range rows {
		total += len(row)
	}
	out := make([]Candidate, 0, total)
	for _, row := range rows {
		out = append(out, row...)
	}

	logger.Debug().
		Int("records", len(recs)).
		Int("matches", len(out)).
		Int("workers", m.workers).
		Dur("elapsed", time.Since(start)).
		Msg("Pairwise scoring complete")

	return out, nil
}

// rowCheckInterval is how many pairs a task scores between context checks.
const rowCheckInterval = 256

func (m *Matcher) scoreRow(ctx context.Context, recs []records.Record, i int, q Query, dst *[]Candidate) error {
	a := recs[i]
	var found []Candidate
	for j := i + 1; j < len(recs); j++ {
		if (j-i)%rowCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		score := m.scorer.Score(a, recs[j], q.Fields, q.Weights)
		if score >= q.Threshold {
			found = append(found, Candidate{
				IndexA: i,
				IndexB: j,
				IDA:    a.ID(),
				IDB:    recs[j].ID(),
				Score:  score,
				Fields: q.Fields,
			})
		}
	}
	*dst = found
	return ctx.Err()
}
