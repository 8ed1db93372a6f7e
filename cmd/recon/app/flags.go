package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/recon/pkg/logging"
)

// Flags holds the global command-line flags. They take precedence over
// the config file and environment.
type Flags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	NoColor    bool
	Format     string
	LogLevel   string
}

// apply overlays the logging flags onto cfg.
func (f Flags) apply(cfg *logging.Config) {
	cfg.Level = determineLogLevel(f, cfg.Level)
	cfg.NoColor = cfg.NoColor || f.NoColor
}

// determineLogLevel resolves the level from, in order, --log-level, -q,
// -v and the configured level. Unknown names become info; an unknown
// --log-level is also reported on stderr.
func determineLogLevel(f Flags, configured string) string {
	switch {
	case f.LogLevel != "":
		lvl := logging.ParseLevel(f.LogLevel)
		if lvl == zerolog.InfoLevel && !strings.EqualFold(strings.TrimSpace(f.LogLevel), "info") {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using %q\n", f.LogLevel, lvl)
		}
		return lvl.String()
	case f.Quiet:
		return zerolog.WarnLevel.String()
	case f.Verbose:
		return zerolog.DebugLevel.String()
	default:
		return logging.ParseLevel(configured).String()
	}
}

// NewLogger builds the logger for cfg and makes it the process default.
func NewLogger(cfg logging.Config) zerolog.Logger {
	logger := logging.New(&cfg)
	logging.SetDefault(logger)
	return logger
}
