package recon

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/jobs"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/similarity"
)

// Option is a function that configures an Engine instance
type Option func(*config) error

// config holds everything New needs to build an engine.
type config struct {
	settings Config
	store    jobs.Store
	logger   *zerolog.Logger
	metrics  *metrics.Metrics
	scorer   *similarity.Scorer
}

// Config is the engine's tunable configuration.
type Config struct {
	// MaxBatchSize is the largest batch accepted by matching. Zero or less
	// removes the ceiling.
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size" mapstructure:"max_batch_size"`

	// DefaultMatchThreshold is used by NewRequest.
	DefaultMatchThreshold float64 `json:"default_similarity_threshold" yaml:"default_similarity_threshold" mapstructure:"default_similarity_threshold"`

	// DefaultDedupThreshold is used by NewRequest.
	DefaultDedupThreshold float64 `json:"default_dedup_threshold" yaml:"default_dedup_threshold" mapstructure:"default_dedup_threshold"`

	// FieldWeights apply when a request asks for default weights.
	FieldWeights map[string]float64 `json:"field_weights" yaml:"field_weights" mapstructure:"field_weights"`

	// DefaultStrategy is used when a request names no strategy.
	DefaultStrategy merge.Strategy `json:"default_merge_strategy" yaml:"default_merge_strategy" mapstructure:"default_merge_strategy"`

	// ReconcileTimeout bounds a reconciliation with no timeout of its own.
	// Zero means no bound.
	ReconcileTimeout time.Duration `json:"reconcile_timeout" yaml:"reconcile_timeout" mapstructure:"reconcile_timeout"`

	// Workers sizes the matching pool. Zero or less uses one per CPU.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// CacheSize bounds the field-ratio cache. Zero disables it.
	CacheSize int `json:"similarity_cache_size" yaml:"similarity_cache_size" mapstructure:"similarity_cache_size"`

	// Provenance attaches field-level provenance to merged records.
	Provenance bool `json:"provenance" yaml:"provenance" mapstructure:"provenance"`
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:          matcher.DefaultMaxBatchSize,
		DefaultMatchThreshold: similarity.DefaultMatchThreshold,
		DefaultDedupThreshold: similarity.DefaultDedupThreshold,
		FieldWeights:          similarity.DefaultWeights(),
		DefaultStrategy:       merge.LatestWins,
		CacheSize:             similarity.DefaultCacheSize,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if err := similarity.ValidateThreshold("default_similarity_threshold", c.DefaultMatchThreshold); err != nil {
		return err
	}
	if err := similarity.ValidateThreshold("default_dedup_threshold", c.DefaultDedupThreshold); err != nil {
		return err
	}
	if err := similarity.ValidateWeights(c.FieldWeights); err != nil {
		return err
	}
	if !c.DefaultStrategy.Valid() {
		return errors.NewValidationError("default_merge_strategy", c.DefaultStrategy,
			"must be one of latest_wins, first_wins, concatenate")
	}
	if c.ReconcileTimeout < 0 {
		return errors.NewValidationError("reconcile_timeout", c.ReconcileTimeout, "must not be negative")
	}
	if c.CacheSize < 0 {
		return errors.NewValidationError("similarity_cache_size", c.CacheSize, "must not be negative")
	}
	return nil
}

// options applies the given options to the engine's config.
func (e *engine) options(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(e.config); err != nil {
			return err
		}
	}
	return nil
}

// WithConfig replaces the engine configuration.
func WithConfig(cfg Config) Option {
	return func(c *config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.settings = cfg
		return nil
	}
}

// WithStore configures where jobs are recorded. The default is an
// unbounded in-memory store.
func WithStore(store jobs.Store) Option {
	return func(c *config) error {
		if store == nil {
			return errors.NewValidationError("store", nil, "must not be nil")
		}
		c.store = store
		return nil
	}
}

// WithLogger configures the logger used when a call's context carries none.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics configures Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithScorer shares a similarity scorer, and its cache, with the engine.
func WithScorer(s *similarity.Scorer) Option {
	return func(c *config) error {
		c.scorer = s
		return nil
	}
}

// WithProvenance configures field-level provenance tracking on merges.
func WithProvenance(enabled bool) Option {
	return func(c *config) error {
		c.settings.Provenance = enabled
		return nil
	}
}

// WithMaxBatchSize configures the batch ceiling.
func WithMaxBatchSize(n int) Option {
	return func(c *config) error {
		c.settings.MaxBatchSize = n
		return nil
	}
}

// WithWorkers configures the size of the matching pool.
func WithWorkers(n int) Option {
	return func(c *config) error {
		c.settings.Workers = n
		return nil
	}
}

// WithTimeout configures the default reconciliation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return errors.NewValidationError("reconcile_timeout", d, "must not be negative")
		}
		c.settings.ReconcileTimeout = d
		return nil
	}
}
