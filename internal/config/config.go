// Package config loads recon configuration from defaults, a config file,
// .env files and RECON_* environment variables, in increasing precedence.
// Command-line flags are applied on top by the caller.
package config

import (
	stderrors "errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/jobstore"
	"github.com/agentstation/recon/internal/server"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/logging"
	"github.com/agentstation/recon/pkg/merge"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RECON"

// DefaultConfigName is the config file searched for in $HOME and the
// working directory.
const DefaultConfigName = ".recon"

// DefaultStorePath is the SQLite file used when store.path is unset.
const DefaultStorePath = "recon.db"

// Config keys.
const (
	KeyMaxBatchSize     = "engine.max_batch_size"
	KeyMatchThreshold   = "engine.default_similarity_threshold"
	KeyDedupThreshold   = "engine.default_dedup_threshold"
	KeyFieldWeights     = "engine.field_weights"
	KeyMergeStrategy    = "engine.default_merge_strategy"
	KeyReconcileTimeout = "engine.reconcile_timeout"
	KeyWorkers          = "engine.workers"
	KeyCacheSize        = "engine.similarity_cache_size"
	KeyProvenance       = "engine.provenance"

	KeyStoreDriver    = "store.driver"
	KeyStorePath      = "store.path"
	KeyStoreRetention = "store.job_retention"

	KeyServerHost         = "server.host"
	KeyServerPort         = "server.port"
	KeyServerPrefix       = "server.prefix"
	KeyServerRateLimit    = "server.rate_limit"
	KeyServerRateBurst    = "server.rate_burst"
	KeyServerCORS         = "server.cors_enabled"
	KeyServerCORSOrigins  = "server.cors_origins"
	KeyServerCacheTTL     = "server.cache_ttl"
	KeyServerMaxBody      = "server.max_body_bytes"
	KeyServerReadTimeout  = "server.read_timeout"
	KeyServerWriteTimeout = "server.write_timeout"
	KeyServerIdleTimeout  = "server.idle_timeout"
	KeyServerMetrics      = "server.metrics_enabled"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogOutput = "log.output"
)

// Config is the complete recon configuration.
type Config struct {
	// ConfigFile is the file that was read, if any.
	ConfigFile string

	Engine recon.Config
	Store  jobstore.Config
	Server server.Config
	Log    logging.Config
}

// Default returns the built-in configuration without reading any file
// or environment variable.
func Default() *Config {
	return &Config{
		Engine: recon.DefaultConfig(),
		Store: jobstore.Config{
			Driver: jobstore.DriverMemory,
			Path:   DefaultStorePath,
		},
		Server: server.DefaultConfig(),
		Log:    *logging.DefaultConfig(),
	}
}

// Load reads configuration. An empty configFile searches for .recon.yaml
// in $HOME and the working directory; a missing file is not an error,
// but an unreadable or malformed one is.
func Load(configFile string) (*Config, error) {
	loadEnvFiles()
	return LoadFrom(viper.New(), configFile)
}

// LoadFrom reads configuration through v. It does not touch .env files.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigError("file", "reading config", err)
		}
	}

	weights, err := ParseWeights(v.Get(KeyFieldWeights))
	if err != nil {
		return nil, err
	}
	strategy, err := merge.ParseStrategy(v.GetString(KeyMergeStrategy))
	if err != nil {
		return nil, errors.NewConfigError("engine", err.Error(), err)
	}

	cfg := &Config{
		ConfigFile: v.ConfigFileUsed(),
		Engine: recon.Config{
			MaxBatchSize:          v.GetInt(KeyMaxBatchSize),
			DefaultMatchThreshold: v.GetFloat64(KeyMatchThreshold),
			DefaultDedupThreshold: v.GetFloat64(KeyDedupThreshold),
			FieldWeights:          weights,
			DefaultStrategy:       strategy,
			ReconcileTimeout:      v.GetDuration(KeyReconcileTimeout),
			Workers:               v.GetInt(KeyWorkers),
			CacheSize:             v.GetInt(KeyCacheSize),
			Provenance:            v.GetBool(KeyProvenance),
		},
		Store: jobstore.Config{
			Driver:    v.GetString(KeyStoreDriver),
			Path:      v.GetString(KeyStorePath),
			Retention: v.GetInt(KeyStoreRetention),
		},
		Server: server.Config{
			Host:           v.GetString(KeyServerHost),
			Port:           v.GetInt(KeyServerPort),
			PathPrefix:     v.GetString(KeyServerPrefix),
			RateLimit:      v.GetFloat64(KeyServerRateLimit),
			RateBurst:      v.GetInt(KeyServerRateBurst),
			CORSEnabled:    v.GetBool(KeyServerCORS),
			CORSOrigins:    v.GetStringSlice(KeyServerCORSOrigins),
			CacheTTL:       v.GetDuration(KeyServerCacheTTL),
			MaxBodyBytes:   v.GetInt64(KeyServerMaxBody),
			ReadTimeout:    v.GetDuration(KeyServerReadTimeout),
			WriteTimeout:   v.GetDuration(KeyServerWriteTimeout),
			IdleTimeout:    v.GetDuration(KeyServerIdleTimeout),
			MetricsEnabled: v.GetBool(KeyServerMetrics),
		},
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
			Output: v.GetString(KeyLogOutput),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return errors.NewConfigError("engine", err.Error(), err)
	}
	switch strings.ToLower(c.Store.Driver) {
	case jobstore.DriverMemory, jobstore.DriverSQLite:
	default:
		return errors.NewConfigError("store", fmt.Sprintf("unknown driver %q", c.Store.Driver), nil)
	}
	if c.Store.Retention < 0 {
		return errors.NewConfigError("store", "job_retention must not be negative", nil)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.NewConfigError("server", fmt.Sprintf("invalid port %d", c.Server.Port), nil)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	engine := recon.DefaultConfig()
	v.SetDefault(KeyMaxBatchSize, engine.MaxBatchSize)
	v.SetDefault(KeyMatchThreshold, engine.DefaultMatchThreshold)
	v.SetDefault(KeyDedupThreshold, engine.DefaultDedupThreshold)
	v.SetDefault(KeyFieldWeights, FormatWeights(engine.FieldWeights))
	v.SetDefault(KeyMergeStrategy, string(engine.DefaultStrategy))
	v.SetDefault(KeyReconcileTimeout, engine.ReconcileTimeout)
	v.SetDefault(KeyWorkers, engine.Workers)
	v.SetDefault(KeyCacheSize, engine.CacheSize)
	v.SetDefault(KeyProvenance, engine.Provenance)

	v.SetDefault(KeyStoreDriver, jobstore.DriverMemory)
	v.SetDefault(KeyStorePath, DefaultStorePath)
	v.SetDefault(KeyStoreRetention, 0)

	srv := server.DefaultConfig()
	v.SetDefault(KeyServerHost, srv.Host)
	v.SetDefault(KeyServerPort, srv.Port)
	v.SetDefault(KeyServerPrefix, srv.PathPrefix)
	v.SetDefault(KeyServerRateLimit, srv.RateLimit)
	v.SetDefault(KeyServerRateBurst, srv.RateBurst)
	v.SetDefault(KeyServerCORS, srv.CORSEnabled)
	v.SetDefault(KeyServerCORSOrigins, srv.CORSOrigins)
	v.SetDefault(KeyServerCacheTTL, srv.CacheTTL)
	v.SetDefault(KeyServerMaxBody, srv.MaxBodyBytes)
	v.SetDefault(KeyServerReadTimeout, srv.ReadTimeout)
	v.SetDefault(KeyServerWriteTimeout, srv.WriteTimeout)
	v.SetDefault(KeyServerIdleTimeout, srv.IdleTimeout)
	v.SetDefault(KeyServerMetrics, srv.MetricsEnabled)

	log := logging.DefaultConfig()
	v.SetDefault(KeyLogLevel, log.Level)
	v.SetDefault(KeyLogFormat, log.Format)
	v.SetDefault(KeyLogOutput, log.Output)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env; neither overrides the real environment.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// ParseWeights accepts field weights as a map (from a config file) or as
// a "name:0.4,email:0.3" string (from the environment or a flag).
func ParseWeights(raw any) (map[string]float64, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case map[string]float64:
		return maps.Clone(t), nil
	case map[string]any:
		out := make(map[string]float64, len(t))
		for k, v := range t {
			w, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, errors.NewConfigError("engine", fmt.Sprintf("field_weights: weight for %q is not a number", k), err)
			}
			out[k] = w
		}
		return out, nil
	case string:
		return parseWeightString(t)
	default:
		return nil, errors.NewConfigError("engine", fmt.Sprintf("field_weights: unsupported type %T", raw), nil)
	}
}

func parseWeightString(s string) (map[string]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		field, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, errors.NewConfigError("engine", fmt.Sprintf("field_weights: expected field:weight, got %q", part), nil)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.NewConfigError("engine", fmt.Sprintf("field_weights: weight for %q is not a number", field), err)
		}
		out[field] = w
	}
	return out, nil
}

// FormatWeights renders weights in the string form ParseWeights accepts,
// with fields sorted.
func FormatWeights(weights map[string]float64) string {
	parts := make([]string, 0, len(weights))
	for _, field := range slices.Sorted(maps.Keys(weights)) {
		parts = append(parts, field+":"+strconv.FormatFloat(weights[field], 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}
