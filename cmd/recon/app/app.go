// Package app wires the recon CLI: global flags, configuration loading,
// logging and the engine shared by every command.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/cmd/output"
	"github.com/agentstation/recon/internal/config"
	"github.com/agentstation/recon/internal/jobstore"
	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/logging"
)

// build is the version metadata stamped in at link time.
type build struct {
	version, commit, date, builtBy string
}

// App holds what the commands share: flags, configuration, the logger,
// metrics and a lazily built engine.
type App struct {
	build build

	// Global flags, bound by the root command
	flags Flags

	// Configuration; loaded when the first command runs unless preset
	config *config.Config
	preset bool

	logger  *zerolog.Logger
	metrics *metrics.Metrics

	// Guards config and engine; the engine is built on first use.
	mu     sync.RWMutex
	engine recon.Engine
}

// New returns an App for the given build metadata.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	a := &App{
		build:   build{version: version, commit: commit, date: date, builtBy: builtBy},
		logger:  logging.Default(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) Version() string { return a.build.version }
func (a *App) Commit() string  { return a.build.commit }
func (a *App) Date() string    { return a.build.date }
func (a *App) BuiltBy() string { return a.build.builtBy }

// Config returns the application configuration, or the defaults before
// any command has run.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.config == nil {
		return config.Default()
	}
	return a.config
}

func (a *App) Logger() *zerolog.Logger   { return a.logger }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// OutputFormat returns the --format flag, or a format detected from the
// terminal when the flag is unset.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.flags.Format))
}

// Engine returns the shared engine, opening the configured job store on
// first use. After Shutdown the next call builds a fresh one.
func (a *App) Engine() (recon.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		e, err := a.newEngine()
		if err != nil {
			return nil, err
		}
		a.engine = e
	}
	return a.engine, nil
}

// newEngine must be called with a.mu held.
func (a *App) newEngine() (recon.Engine, error) {
	cfg := a.config
	if cfg == nil {
		cfg = config.Default()
	}

	store, err := jobstore.Open(cfg.Store)
	if err != nil {
		return nil, errors.WrapResource("open", "job store", cfg.Store.Driver, err)
	}

	e, err := recon.New(
		recon.WithConfig(cfg.Engine),
		recon.WithStore(store),
		recon.WithLogger(a.logger),
		recon.WithMetrics(a.metrics),
	)
	if err != nil {
		_ = store.Close()
		return nil, errors.WrapResource("create", "engine", "", err)
	}

	a.logger.Debug().
		Str("store", cfg.Store.Driver).
		Int("max_batch_size", cfg.Engine.MaxBatchSize).
		Msg("Engine created")
	return e, nil
}

// Shutdown releases the engine and its job store.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	e := a.engine
	a.engine = nil
	a.mu.Unlock()

	if e == nil {
		return nil
	}
	if err := e.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close engine during shutdown")
		return err
	}
	return nil
}

// load reads the configuration unless one was preset, applies the global
// flags and rebuilds the logger.
func (a *App) load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.preset {
		cfg, err := config.Load(a.flags.ConfigFile)
		if err != nil {
			return err
		}
		a.config = cfg
	}

	a.flags.apply(&a.config.Log)
	logger := NewLogger(a.config.Log)
	a.logger = &logger
	return nil
}

// Option configures an App.
type Option func(*App) error

// WithConfig sets a configuration, skipping file and environment loading.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return errors.NewValidationError("config", nil, "must not be nil")
		}
		a.config = cfg
		a.preset = true
		return nil
	}
}

// WithLogger replaces the default logger until a command loads config.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithEngine presets the engine so Engine never opens a store.
func WithEngine(e recon.Engine) Option {
	return func(a *App) error {
		a.engine = e
		return nil
	}
}
