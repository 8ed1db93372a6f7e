// Package application provides a test double for the command application
// interface.
package application

import (
	"cmp"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/recon"
	app "github.com/agentstation/recon/cmd/application"
	"github.com/agentstation/recon/internal/config"
	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/pkg/logging"
)

var _ app.Application = (*Mock)(nil)

// Build is the version information a Mock reports.
type Build struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

// Mock is an Application backed by plain fields. Zero fields fall back to
// the default configuration, a no-op logger, table output and a "test"
// build. A nil Registry disables metrics.
type Mock struct {
	EngineValue recon.Engine
	EngineErr   error
	Settings    *config.Config
	Log         *zerolog.Logger
	Registry    *metrics.Metrics
	Format      string
	Build       Build
}

// NewMock returns a Mock serving a fresh in-memory engine built with opts.
// The engine logs nowhere and is closed when t finishes.
func NewMock(t testing.TB, format string, opts ...recon.Option) *Mock {
	t.Helper()
	opts = append([]recon.Option{recon.WithLogger(logging.NewNopLogger())}, opts...)
	engine, err := recon.New(opts...)
	if err != nil {
		t.Fatalf("recon.New: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return &Mock{EngineValue: engine, Format: format}
}

func (m *Mock) Engine() (recon.Engine, error) { return m.EngineValue, m.EngineErr }

func (m *Mock) Config() *config.Config {
	if m.Settings == nil {
		return config.Default()
	}
	return m.Settings
}

func (m *Mock) Logger() *zerolog.Logger {
	if m.Log == nil {
		return logging.NewNopLogger()
	}
	return m.Log
}

func (m *Mock) Metrics() *metrics.Metrics { return m.Registry }

func (m *Mock) OutputFormat() string { return cmp.Or(m.Format, "table") }

func (m *Mock) Version() string { return cmp.Or(m.Build.Version, "test") }

func (m *Mock) Commit() string { return cmp.Or(m.Build.Commit, "test-commit") }

func (m *Mock) Date() string { return cmp.Or(m.Build.Date, "test-date") }

func (m *Mock) BuiltBy() string { return cmp.Or(m.Build.BuiltBy, "test") }
