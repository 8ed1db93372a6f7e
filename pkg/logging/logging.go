// Package logging builds the zerolog loggers used by the engine, the HTTP
// server and the CLI. Terminals get console output; pipes, files and
// services get one JSON object per line.
//
//	logger := logging.New(&logging.Config{Level: "debug"})
//	ctx := logging.WithJob(logging.WithLogger(ctx, &logger), jobID)
//	logging.FromContext(ctx).Info().Int("records", n).Msg("Reconciliation started")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by the process-wide default logger before
// any configuration file is loaded.
const (
	EnvLevel  = "RECON_LOG_LEVEL"
	EnvFormat = "RECON_LOG_FORMAT"
)

const logFilePermissions = 0o644

var defaultLogger = New(envConfig())

// Config holds logger settings. It is the log section of the recon
// configuration file.
type Config struct {
	// Level is trace, debug, info, warn, error or disabled.
	Level string `mapstructure:"level"`

	// Format is json, console or auto (console on a terminal).
	Format string `mapstructure:"format"`

	// Output is stderr, stdout, discard or a file path.
	Output string `mapstructure:"output"`

	// NoColor disables color in console output.
	NoColor bool `mapstructure:"no_color"`

	// AddCaller includes file:line in every entry.
	AddCaller bool `mapstructure:"add_caller"`
}

// DefaultConfig returns info-level auto-format logging to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

func envConfig() *Config {
	cfg := DefaultConfig()
	if level := os.Getenv(EnvLevel); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv(EnvFormat); format != "" {
		cfg.Format = format
	}
	return cfg
}

// New creates a logger from cfg and makes its level the global minimum.
// A nil cfg uses DefaultConfig.
func New(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writer(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, including zerolog's
// global log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "", "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func writer(cfg *Config) io.Writer {
	var (
		out      io.Writer
		terminal bool
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out, terminal = os.Stderr, isTerminal(os.Stderr)
	case "stdout":
		out, terminal = os.Stdout, isTerminal(os.Stdout)
	case "discard", "none":
		out = io.Discard
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermissions)
		if err != nil {
			out, terminal = os.Stderr, isTerminal(os.Stderr)
		} else {
			out = f
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
	case "", "auto":
		if !terminal {
			return out
		}
	default:
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
