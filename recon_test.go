package recon

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/jobs"
	"github.com/agentstation/recon/pkg/logging"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

func mustRecords(t *testing.T, in ...map[string]any) []records.Record {
	t.Helper()
	recs, err := records.FromMaps(in)
	require.NoError(t, err)
	return recs
}

func newTestEngine(t *testing.T, opts ...Option) Engine {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func johnDoe(t *testing.T) []records.Record {
	return mustRecords(t,
		map[string]any{"id": 1, "name": "john doe", "email": "j@x.com"},
		map[string]any{"id": 2, "name": "John Doe", "email": "j@x.com"},
	)
}

func contacts(t *testing.T) []records.Record {
	return mustRecords(t,
		map[string]any{"id": "a1", "name": "Alice Martin", "email": "alice@example.com", "phone": "555-0101"},
		map[string]any{"id": "b1", "name": "Bob Stone", "email": "bob@example.com", "phone": "555-0202"},
		map[string]any{"id": "a2", "name": "Alice Martin", "email": "alice@example.org", "phone": "555-0101"},
		map[string]any{"id": "c1", "name": "Carol King", "email": "carol@example.com"},
		map[string]any{"id": "b2", "name": "Bob Stone", "email": "bob@example.com", "phone": "555-0203"},
		map[string]any{"id": "a3", "name": "Alicia Martin", "email": "alice@example.com", "phone": "555-0101"},
		map[string]any{"id": "d1", "name": "Dan Wu", "email": nil, "phone": ""},
	)
}

func TestReconcileMergesMatchingPair(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req := e.Config().NewRequest(johnDoe(t))
	req.MatchFields = []string{"name", "email"}
	req.MatchThreshold = 0.8
	req.Strategy = merge.LatestWins

	result, err := e.Reconcile(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, result.Status)
	assert.Equal(t, 2, result.OriginalCount)
	assert.Equal(t, 2, result.DedupedCount)
	assert.Equal(t, 1, result.MatchedPairs)
	require.Len(t, result.Records, 1)

	merged := result.Records[0]
	assert.Equal(t, []string{"1", "2"}, merged.MergedFrom)
	require.NotNil(t, merged.SimilarityScore)
	assert.GreaterOrEqual(t, *merged.SimilarityScore, 0.9)
	assert.Equal(t, "John Doe", merged.Fields["name"].Text())

	assert.Equal(t, 1, result.Confidence.Count)
	assert.Equal(t, 1, result.Confidence.HighCount)

	stored, err := e.GetJob(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Records, stored.Records)
	assert.Equal(t, jobs.DefaultEntityType, stored.EntityType)
}

func TestReconcileBatchTooLargeCreatesNoJob(t *testing.T) {
	m := metrics.New()
	e := newTestEngine(t, WithMaxBatchSize(2), WithMetrics(m))
	ctx := context.Background()

	recs := mustRecords(t,
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
		map[string]any{"name": "c"},
	)
	req := e.Config().NewRequest(recs)
	req.MatchFields = []string{"name"}

	_, err := e.Reconcile(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.IsBatchTooLarge(err))

	var tooLarge *errors.BatchTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 3, tooLarge.Size)
	assert.Equal(t, 2, tooLarge.Limit)

	page, err := e.ListJobs(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRejected.WithLabelValues(OpReconcile)))

	_, err = e.FindMatches(ctx, recs, []string{"name"}, 0.5)
	assert.True(t, errors.IsBatchTooLarge(err))
	_, err = e.Deduplicate(ctx, recs, similarity.DefaultConfig())
	assert.True(t, errors.IsBatchTooLarge(err))
}

func TestReconcileRejectsInvalidConfig(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*Request)
	}{
		{"unknown strategy", func(r *Request) { r.Strategy = "newest" }},
		{"threshold above one", func(r *Request) { r.MatchThreshold = 1.5 }},
		{"negative threshold", func(r *Request) { r.MatchThreshold = -0.1 }},
		{"dedup threshold", func(r *Request) { r.Similarity.DedupThreshold = 2 }},
		{"negative weight", func(r *Request) { r.Similarity.Weights = map[string]float64{"name": -1} }},
		{"negative timeout", func(r *Request) { r.Timeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := e.Config().NewRequest(johnDoe(t))
			req.MatchFields = []string{"name"}
			tt.modify(&req)

			_, err := e.Reconcile(ctx, req)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}

	page, err := e.ListJobs(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestReconcileStrategyNameIgnoresCase(t *testing.T) {
	e := newTestEngine(t)

	req := e.Config().NewRequest(johnDoe(t))
	req.MatchFields = []string{"name", "email"}
	req.Strategy = "First_Wins"

	result, err := e.Reconcile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, merge.FirstWins, result.Strategy)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "john doe", result.Records[0].Fields["name"].Text())
}

func TestReconcileTimeoutRecordsFailedJob(t *testing.T) {
	m := metrics.New()
	e := newTestEngine(t, WithMetrics(m))

	var failed []jobs.Job
	e.OnJobFailed(func(job jobs.Job) { failed = append(failed, job) })
	e.OnJobCompleted(func(job jobs.Job) { t.Errorf("unexpected completed job %s", job.ID) })

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	req := e.Config().NewRequest(contacts(t))
	req.MatchFields = []string{"name", "email"}

	result, err := e.Reconcile(ctx, req)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsTimeout(err), "got %v", err)

	page, err := e.ListJobs(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, jobs.StatusFailed, page.Jobs[0].Status)
	assert.NotEmpty(t, page.Jobs[0].Error)

	job, err := e.GetJob(context.Background(), page.Jobs[0].ID)
	require.NoError(t, err)
	assert.Empty(t, job.Records)

	require.Len(t, failed, 1)
	assert.Equal(t, job.ID, failed[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed", "latest_wins")))
}

func TestReconcileCanceled(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := e.Config().NewRequest(contacts(t))
	req.MatchFields = []string{"name"}

	_, err := e.Reconcile(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err), "got %v", err)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Completed)
}

func TestReconcileDeterministic(t *testing.T) {
	e := newTestEngine(t, WithWorkers(4))
	ctx := context.Background()

	run := func() []merge.Record {
		req := e.Config().NewRequest(contacts(t))
		req.MatchFields = []string{"name", "email", "phone"}
		req.MatchThreshold = 0.6
		req.Similarity.Fields = []string{"name", "email", "phone"}
		result, err := e.Reconcile(ctx, req)
		require.NoError(t, err)
		return result.Records
	}

	first := run()
	for range 5 {
		assert.Equal(t, first, run())
	}
}

func TestReconcileConservation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, threshold := range []float64{0, 0.5, 0.7, 0.9, 1} {
		t.Run(fmt.Sprintf("threshold %.1f", threshold), func(t *testing.T) {
			req := e.Config().NewRequest(contacts(t))
			req.Dedupe = false
			req.MatchFields = []string{"name", "email"}
			req.MatchThreshold = threshold

			result, err := e.Reconcile(ctx, req)
			require.NoError(t, err)

			merged := 0
			seen := map[string]int{}
			for _, r := range result.Records {
				if r.IsMerged() {
					merged++
					for _, id := range r.MergedFrom {
						seen[id]++
					}
					continue
				}
				seen[r.ID()]++
			}
			assert.Len(t, result.Records, result.DedupedCount-merged)
			for _, r := range req.Records {
				assert.Equal(t, 1, seen[r.ID()], "record %s", r.ID())
			}
		})
	}
}

func TestFindMatchesThresholdMonotonic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	recs := contacts(t)
	fields := []string{"name", "email", "phone"}

	prev := -1
	for _, threshold := range []float64{0, 0.3, 0.5, 0.7, 0.8, 0.9, 1} {
		cands, err := e.FindMatches(ctx, recs, fields, threshold)
		require.NoError(t, err)
		if prev >= 0 {
			assert.LessOrEqual(t, len(cands), prev, "threshold %.1f", threshold)
		}
		prev = len(cands)

		for i := 1; i < len(cands); i++ {
			a, b := cands[i-1], cands[i]
			ordered := a.IndexA < b.IndexA || (a.IndexA == b.IndexA && a.IndexB < b.IndexB)
			assert.True(t, ordered, "candidates out of order at %d", i)
		}
	}
}

func TestFindMatchesNoFields(t *testing.T) {
	e := newTestEngine(t)
	cands, err := e.FindMatches(context.Background(), contacts(t), nil, 0.8)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestDeduplicateExactDuplicate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	recs := mustRecords(t,
		map[string]any{"name": "Alice", "email": "a@x.com"},
		map[string]any{"name": "Bob", "email": "b@x.com"},
		map[string]any{"name": "Alice", "email": "a@x.com"},
	)

	out, err := e.Deduplicate(ctx, recs, similarity.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Alice", out[0].Fields["name"].Text())
	assert.Equal(t, "Bob", out[1].Fields["name"].Text())

	again, err := e.Deduplicate(ctx, out, similarity.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestReconcileDefaultWeightsAndEntityType(t *testing.T) {
	e := newTestEngine(t)

	req := e.Config().NewRequest(contacts(t))
	req.EntityType = ""
	req.Dedupe = false
	req.MatchFields = []string{"name", "email", "phone"}
	req.UseDefaultWeights = true

	result, err := e.Reconcile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, jobs.DefaultEntityType, result.EntityType)

	weighted := similarity.DefaultWeights()
	scorer, err := similarity.New()
	require.NoError(t, err)
	for _, c := range result.Matches {
		want := scorer.Score(req.Records[c.IndexA], req.Records[c.IndexB], req.MatchFields, weighted)
		assert.InDelta(t, want, c.Score, 1e-9)
	}
}

func TestReconcileSeparatesMatchesFromMerged(t *testing.T) {
	e := newTestEngine(t)

	req := e.Config().NewRequest(mustRecords(t,
		map[string]any{"id": "a", "name": "Ann Lee"},
		map[string]any{"id": "b", "name": "Ann Lee"},
		map[string]any{"id": "c", "name": "Ann Lee"},
	))
	req.Dedupe = false
	req.MatchFields = []string{"name"}

	result, err := e.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, result.Matches, 3)
	require.Len(t, result.Merged, 1)
	assert.Equal(t, 0, result.Merged[0].IndexA)
	assert.Equal(t, 1, result.Merged[0].IndexB)
	assert.Len(t, result.Records, 2)
}

func TestReconcileProvenance(t *testing.T) {
	e := newTestEngine(t, WithProvenance(true))

	req := e.Config().NewRequest(johnDoe(t))
	req.MatchFields = []string{"name", "email"}

	result, err := e.Reconcile(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	prov := result.Records[0].Provenance
	require.NotNil(t, prov)
	assert.Equal(t, "2", prov["name"].Source)
	assert.NotEmpty(t, result.Provenance)
}

func TestHooksAndStats(t *testing.T) {
	m := metrics.New()
	e := newTestEngine(t, WithMetrics(m))
	ctx := context.Background()

	var completed []string
	e.OnJobCompleted(func(job jobs.Job) { completed = append(completed, job.ID) })

	for range 3 {
		req := e.Config().NewRequest(johnDoe(t))
		req.MatchFields = []string{"name"}
		_, err := e.Reconcile(ctx, req)
		require.NoError(t, err)
	}
	assert.Len(t, completed, 3)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalReconciliations)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 3, stats.RetainedJobs)
	assert.Positive(t, stats.Goroutines)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("completed", "latest_wins")))

	page, err := e.ListJobs(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, completed[1], page.Jobs[0].ID)
	assert.Equal(t, completed[2], page.Jobs[1].ID)
}

func TestGetJobNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestValidateMatches(t *testing.T) {
	e := newTestEngine(t)
	out := e.ValidateMatches([]matcher.Candidate{
		{IndexA: 0, IndexB: 1, Score: 0.95, Fields: []string{"name"}},
		{IndexA: 0, IndexB: 2, Score: 0.5, Fields: []string{"name"}},
	}, matcher.DefaultRules())
	require.Len(t, out, 2)
	assert.True(t, out[0].Valid)
	assert.False(t, out[1].Valid)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(WithTimeout(-time.Second))
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.DefaultStrategy = "newest"
	_, err = New(WithConfig(cfg))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	cfg = DefaultConfig()
	cfg.FieldWeights = map[string]float64{"name": math.Inf(1)}
	_, err = New(WithConfig(cfg))
	assert.True(t, errors.IsValidationError(err), "got %v", err)

	_, err = New(WithStore(nil))
	require.Error(t, err)
}

func TestLoggerReceivesJobID(t *testing.T) {
	tl := logging.NewTestLogger(t)
	e := newTestEngine(t, WithLogger(tl.Logger))

	req := e.Config().NewRequest(johnDoe(t))
	req.MatchFields = []string{"name"}
	result, err := e.Reconcile(context.Background(), req)
	require.NoError(t, err)

	tl.AssertContains(t, result.ID)
	tl.AssertContains(t, "Reconciliation completed")
}
