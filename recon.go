// Package recon reconciles batches of loosely structured records that
// describe the same real-world entities.
//
// A reconciliation removes duplicates, finds pairs of records that likely
// describe one entity, merges each pair under a conflict strategy and
// summarizes how confident the matches were. Every call is recorded as a
// job that can be fetched again by id.
package recon

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/pkg/confidence"
	"github.com/agentstation/recon/pkg/dedup"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/jobs"
	"github.com/agentstation/recon/pkg/logging"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/records"
	"github.com/agentstation/recon/pkg/similarity"
)

// Operation names used for metrics and logs.
const (
	OpReconcile   = "reconcile"
	OpMatch       = "match"
	OpDeduplicate = "deduplicate"
)

// Engine reconciles record batches and keeps a history of the runs.
type Engine interface {
	// Reconcile deduplicates, matches and merges a batch, recording a job.
	Reconcile(ctx context.Context, req Request) (*Result, error)

	// FindMatches returns every pair scoring at or above threshold, without merging.
	FindMatches(ctx context.Context, recs []records.Record, fields []string, threshold float64) ([]matcher.Candidate, error)

	// Deduplicate removes exact and near duplicates.
	Deduplicate(ctx context.Context, recs []records.Record, cfg similarity.Config) ([]records.Record, error)

	// ValidateMatches checks candidates against rules.
	ValidateMatches(cands []matcher.Candidate, rules matcher.Rules) []matcher.Validation

	// GetJob returns a recorded job, or a NotFoundError.
	GetJob(ctx context.Context, id string) (*jobs.Job, error)

	// ListJobs returns a page of the job history in creation order.
	ListJobs(ctx context.Context, limit, offset int) (jobs.Page, error)

	// Stats reports job totals and process resource usage.
	Stats(ctx context.Context) (ServiceStats, error)

	// Config returns the engine configuration.
	Config() Config

	// OnJobCompleted registers a callback for completed jobs
	OnJobCompleted(JobCompletedHook)

	// OnJobFailed registers a callback for failed jobs
	OnJobFailed(JobFailedHook)

	// Close releases the job store.
	Close() error
}

// engine is the internal implementation of the Engine interface
type engine struct {
	config  *config
	store   jobs.Store
	scorer  *similarity.Scorer
	dedup   *dedup.Deduplicator
	matcher *matcher.Matcher
	merger  *merge.Engine
	metrics *metrics.Metrics
	started time.Time
	host    *hostSampler

	// Event hooks
	hooks *hooks
}

// New creates a new Engine with the given options
func New(opts ...Option) (Engine, error) {
	e := &engine{
		config:  &config{settings: DefaultConfig()},
		hooks:   newHooks(),
		started: time.Now(),
		host:    newHostSampler(),
	}

	if err := e.options(opts...); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}
	settings := e.config.settings
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	e.scorer = e.config.scorer
	if e.scorer == nil {
		s, err := similarity.New(similarity.WithCacheSize(settings.CacheSize))
		if err != nil {
			return nil, fmt.Errorf("creating scorer: %w", err)
		}
		e.scorer = s
	}

	m, err := matcher.New(
		matcher.WithScorer(e.scorer),
		matcher.WithMaxBatchSize(settings.MaxBatchSize),
		matcher.WithWorkers(settings.Workers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}
	e.matcher = m
	e.dedup = dedup.New(e.scorer)
	e.merger = merge.New(merge.WithProvenance(settings.Provenance))

	e.store = e.config.store
	if e.store == nil {
		e.store = jobs.NewMemoryStore()
	}
	e.metrics = e.config.metrics

	return e, nil
}

// Config returns the engine configuration.
func (e *engine) Config() Config {
	c := e.config.settings
	c.FieldWeights = maps.Clone(c.FieldWeights)
	return c
}

// OnJobCompleted registers a callback for completed jobs
func (e *engine) OnJobCompleted(fn JobCompletedHook) {
	e.hooks.OnJobCompleted(fn)
}

// OnJobFailed registers a callback for failed jobs
func (e *engine) OnJobFailed(fn JobFailedHook) {
	e.hooks.OnJobFailed(fn)
}

// Close releases the job store.
func (e *engine) Close() error {
	return e.store.Close()
}

// Reconcile implements Engine.
//
// Configuration and batch-size errors return before a job exists. Any
// failure after that, including timeouts, records a failed job with no
// output and returns the error.
func (e *engine) Reconcile(ctx context.Context, req Request) (*Result, error) {
	strategy, err := req.strategy(e.config.settings.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := e.matcher.CheckBatch(len(req.Records)); err != nil {
		e.metrics.RejectBatch(OpReconcile)
		return nil, err
	}

	weights := req.Similarity.Weights
	if len(weights) == 0 && req.UseDefaultWeights {
		weights = maps.Clone(e.config.settings.FieldWeights)
	}
	entityType := req.EntityType
	if entityType == "" {
		entityType = jobs.DefaultEntityType
	}

	job := &jobs.Job{
		ID:            jobs.NewID(),
		EntityType:    entityType,
		Strategy:      strategy,
		OriginalCount: len(req.Records),
		CreatedAt:     utc.Now(),
	}

	ctx, cancel := e.withTimeout(ctx, req.Timeout)
	defer cancel()
	ctx = logging.WithEntityType(logging.WithJob(e.withLogger(ctx), job.ID), entityType)
	logger := logging.FromContext(ctx)

	logger.Info().
		Int("records", len(req.Records)).
		Str("strategy", string(strategy)).
		Bool("dedupe", req.Dedupe).
		Msg("Reconciliation started")

	start := time.Now()
	recs := records.CloneAll(req.Records)

	if req.Dedupe {
		cfg := req.Similarity
		cfg.Weights = weights
		recs, err = e.dedup.Deduplicate(ctx, recs, cfg)
		if err != nil {
			return nil, e.fail(ctx, job, start, err)
		}
	}
	job.DedupedCount = len(recs)

	cands, err := e.matcher.Find(ctx, recs, matcher.Query{
		Fields:    req.MatchFields,
		Weights:   weights,
		Threshold: req.MatchThreshold,
	})
	if err != nil {
		return nil, e.fail(ctx, job, start, err)
	}

	merged, err := e.merger.Merge(recs, cands, strategy)
	if err != nil {
		return nil, e.fail(ctx, job, start, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(ctx, job, start, errors.FromContext(OpReconcile, err))
	}

	job.Status = jobs.StatusCompleted
	job.MatchedPairs = len(cands)
	job.Records = merged.Records
	job.Confidence = confidence.Summarize(cands)
	job.Duration = time.Since(start)

	if _, err := e.store.Create(context.WithoutCancel(ctx), job); err != nil {
		logger.Error().Err(err).Msg("Failed to record reconciliation")
		return nil, err
	}

	e.metrics.ObserveOperation(OpReconcile, job.Duration)
	e.metrics.RecordJob(string(job.Status), string(strategy))
	e.metrics.AddRecords(metrics.StageInput, job.OriginalCount)
	e.metrics.AddRecords(metrics.StageDeduplicated, job.DedupedCount)
	e.metrics.AddRecords(metrics.StageOutput, len(job.Records))
	for _, c := range merged.Accepted {
		e.metrics.ObserveScores(c.Score)
	}

	logger.Info().
		Int("original", job.OriginalCount).
		Int("deduplicated", job.DedupedCount).
		Int("matched_pairs", job.MatchedPairs).
		Int("merged", len(merged.Accepted)).
		Int("output", len(job.Records)).
		Dur("elapsed", job.Duration).
		Msg("Reconciliation completed")

	e.hooks.triggerJob(job)

	return &Result{
		Job:        *job,
		Matches:    cands,
		Merged:     merged.Accepted,
		Provenance: merged.Provenance,
	}, nil
}

// fail records job as failed and returns cause.
func (e *engine) fail(ctx context.Context, job *jobs.Job, start time.Time, cause error) error {
	job.Status = jobs.StatusFailed
	job.Error = cause.Error()
	job.Records = nil
	job.Duration = time.Since(start)

	logger := logging.FromContext(ctx)
	if _, err := e.store.Create(context.WithoutCancel(ctx), job); err != nil {
		logger.Error().Err(err).Msg("Failed to record failed reconciliation")
	}

	e.metrics.ObserveOperation(OpReconcile, job.Duration)
	e.metrics.RecordJob(string(job.Status), string(job.Strategy))

	logger.Warn().
		Err(cause).
		Dur("elapsed", job.Duration).
		Msg("Reconciliation failed")

	e.hooks.triggerJob(job)
	return cause
}

// FindMatches implements Engine.
func (e *engine) FindMatches(ctx context.Context, recs []records.Record, fields []string, threshold float64) ([]matcher.Candidate, error) {
	if err := e.matcher.CheckBatch(len(recs)); err != nil {
		e.metrics.RejectBatch(OpMatch)
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx, 0)
	defer cancel()
	ctx = logging.WithOperation(e.withLogger(ctx), OpMatch)

	start := time.Now()
	cands, err := e.matcher.FindMatches(ctx, recs, fields, threshold)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveOperation(OpMatch, time.Since(start))
	return cands, nil
}

// Deduplicate implements Engine. The batch ceiling applies because the
// near-duplicate pass is quadratic.
func (e *engine) Deduplicate(ctx context.Context, recs []records.Record, cfg similarity.Config) ([]records.Record, error) {
	if err := e.matcher.CheckBatch(len(recs)); err != nil {
		e.metrics.RejectBatch(OpDeduplicate)
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx, 0)
	defer cancel()
	ctx = logging.WithOperation(e.withLogger(ctx), OpDeduplicate)

	start := time.Now()
	out, err := e.dedup.Deduplicate(ctx, recs, cfg)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveOperation(OpDeduplicate, time.Since(start))

	logging.FromContext(ctx).Debug().
		Int("records", len(recs)).
		Int("kept", len(out)).
		Msg("Deduplication complete")
	return out, nil
}

// ValidateMatches implements Engine.
func (e *engine) ValidateMatches(cands []matcher.Candidate, rules matcher.Rules) []matcher.Validation {
	return matcher.Validate(cands, rules)
}

// GetJob implements Engine.
func (e *engine) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	return e.store.Get(ctx, id)
}

// ListJobs implements Engine.
func (e *engine) ListJobs(ctx context.Context, limit, offset int) (jobs.Page, error) {
	return e.store.List(ctx, limit, offset)
}

// withTimeout bounds ctx by d, or by the configured timeout when d is zero.
func (e *engine) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = e.config.settings.ReconcileTimeout
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// withLogger installs the configured logger unless ctx already carries one.
func (e *engine) withLogger(ctx context.Context) context.Context {
	if e.config.logger == nil {
		return ctx
	}
	if logging.HasLogger(ctx) {
		return ctx
	}
	return logging.WithLogger(ctx, e.config.logger)
}
