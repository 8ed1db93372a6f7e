// Package jobstore builds the configured jobs.Store: in memory, or a
// SQLite file with goose-managed schema.
package jobstore

import (
	"strings"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/jobs"
)

// Drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config selects and configures a store.
type Config struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	Retention int    `mapstructure:"retention"`
}

// Open returns the store named by cfg.Driver.
func Open(cfg Config) (jobs.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return jobs.NewMemoryStore(jobs.WithRetention(cfg.Retention)), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, errors.NewConfigError("store", "path is required for the sqlite driver", nil)
		}
		return OpenSQLite(cfg.Path, cfg.Retention)
	default:
		return nil, errors.NewConfigError("store", "unknown driver "+cfg.Driver, nil)
	}
}
