package server

import (
	"strings"
	"time"

	"github.com/agentstation/recon/pkg/errors"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	// API settings
	PathPrefix   string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	// CORS settings
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" mapstructure:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`

	// Rate limiting per client IP: RateLimit requests per second with
	// bursts of RateBurst. Zero disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst"`

	// CacheTTL bounds how long job lookups are served from memory.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// HTTP timeouts
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`

	// Features
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8002,
		PathPrefix:     "/api/v1",
		MaxBodyBytes:   32 << 20,
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		RateLimit:      50,
		RateBurst:      100,
		CacheTTL:       5 * time.Minute,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return joinHostPort(c.Host, c.Port)
}


// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidationError("port", c.Port, "must be between 0 and 65535")
	}
	if c.PathPrefix != "" && (!strings.HasPrefix(c.PathPrefix, "/") || strings.HasSuffix(c.PathPrefix, "/")) {
		return errors.NewValidationError("prefix", c.PathPrefix, "must start with / and not end with /")
	}
	if c.MaxBodyBytes < 0 {
		return errors.NewValidationError("max_body_bytes", c.MaxBodyBytes, "must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	if c.CacheTTL < 0 {
		return errors.NewValidationError("cache_ttl", c.CacheTTL, "must not be negative")
	}
	return nil
}
