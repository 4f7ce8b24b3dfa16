package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RULEKIT_SERVER_LISTEN_ADDRESS.
const EnvPrefix = "RULEKIT_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Fields absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and applies defaults. Unknown keys
// are rejected. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies RULEKIT_*
// environment overrides, which take precedence over the file. An empty path
// starts from Default.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnvOverrides applies RULEKIT_SECTION_FIELD overrides. Values that do
// not parse are ignored.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) {
	env := envReader{lookup: lookup}

	// Engine
	env.boolVar("ENGINE_TRACE", &cfg.Engine.Trace)
	env.intVar("ENGINE_REGEX_CACHE_SIZE", &cfg.Engine.RegexCacheSize)
	env.durationVar("ENGINE_SLOW_RULE_THRESHOLD", &cfg.Engine.SlowRuleThreshold)
	env.boolVar("ENGINE_STRICT_VALIDATION", &cfg.Engine.StrictValidation)
	env.boolVar("ENGINE_GENERATE_IDS", &cfg.Engine.GenerateIDs)

	// Store
	env.stringVar("STORE_BACKEND", &cfg.Store.Backend)
	env.stringVar("STORE_SQLITE_DRIVER", &cfg.Store.SQLite.Driver)
	env.stringVar("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	env.boolVar("STORE_SQLITE_WAL_MODE", &cfg.Store.SQLite.WALMode)
	env.durationVar("STORE_SQLITE_BUSY_TIMEOUT", &cfg.Store.SQLite.BusyTimeout)

	// Rules
	env.stringVar("RULES_PATH", &cfg.Rules.Path)
	env.boolVar("RULES_WATCH", &cfg.Rules.Watch)
	env.durationVar("RULES_DEBOUNCE", &cfg.Rules.Debounce)
	env.boolVar("RULES_STRICT", &cfg.Rules.Strict)
	env.stringVar("RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	env.stringVar("RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	env.durationVar("RULES_GIT_POLL_INTERVAL", &cfg.Rules.Git.PollInterval)
	env.stringVar("RULES_GIT_AUTH_TOKEN", &cfg.Rules.Git.Auth.Token)
	env.stringVar("RULES_GIT_AUTH_PASSWORD", &cfg.Rules.Git.Auth.Password)

	// Audit
	env.boolVar("AUDIT_ENABLED", &cfg.Audit.Enabled)
	env.stringVar("AUDIT_BACKEND", &cfg.Audit.Backend)
	env.stringVar("AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	env.stringVar("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	env.intVar("AUDIT_ASYNC_BUFFER", &cfg.Audit.AsyncBuffer)
	env.intVar("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	env.stringVar("AUDIT_RETENTION_PRUNE_SCHEDULE", &cfg.Audit.Retention.PruneSchedule)
	env.int64Var("AUDIT_RETENTION_MAX_RECORDS", &cfg.Audit.Retention.MaxRecords)

	// Server
	env.stringVar("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	env.durationVar("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	env.durationVar("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	env.durationVar("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	env.durationVar("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Telemetry
	env.stringVar("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.stringVar("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolVar("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.stringVar("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	env.boolVar("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.stringVar("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.stringVar("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	env.floatVar("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

type envReader struct {
	lookup lookupFunc
}

func (e envReader) get(key string) (string, bool) {
	val, ok := e.lookup(EnvPrefix + key)
	return val, ok && val != ""
}

func (e envReader) stringVar(key string, dst *string) {
	if val, ok := e.get(key); ok {
		*dst = val
	}
}

func (e envReader) boolVar(key string, dst *bool) {
	if val, ok := e.get(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func (e envReader) intVar(key string, dst *int) {
	if val, ok := e.get(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func (e envReader) int64Var(key string, dst *int64) {
	if val, ok := e.get(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func (e envReader) floatVar(key string, dst *float64) {
	if val, ok := e.get(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func (e envReader) durationVar(key string, dst *time.Duration) {
	if val, ok := e.get(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
