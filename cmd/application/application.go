// Package application defines what subcommands need from the running
// program. Commands take an Application rather than the concrete app so
// they can run against internal/cmd/application.Mock in tests.
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/config"
	"github.com/agentstation/recon/internal/metrics"
)

// Application is safe for concurrent use.
type Application interface {
	// Engine returns the shared engine, opening the job store on first use.
	Engine() (recon.Engine, error)

	// Config is read-only for commands.
	Config() *config.Config

	Logger() *zerolog.Logger

	// Metrics may return nil; every Metrics method accepts a nil receiver.
	Metrics() *metrics.Metrics

	// OutputFormat is table, json or yaml.
	OutputFormat() string

	// Build information, set at link time.
	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
