package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultRegexCacheSize    = 512
	DefaultSlowRuleThreshold = 10 * time.Millisecond

	// Store defaults
	DefaultBackend            = "sqlite"
	DefaultSQLiteDriver       = "sqlite3"
	DefaultStorePath          = "data/rules.db"
	DefaultAuditPath          = "data/audit.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Rules defaults
	DefaultRulesDebounce = 250 * time.Millisecond
	DefaultGitBranch     = "main"
	DefaultGitLocalPath  = "data/rules-repo"
	DefaultGitPoll       = time.Minute
	DefaultGitTimeout    = 30 * time.Second

	// Audit defaults
	DefaultAuditAsyncBuffer  = 1000
	DefaultAuditWriteTimeout = 5 * time.Second
	DefaultRetentionDays     = 90
	DefaultRetentionSchedule = "0 3 * * *"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "rulekit"
	DefaultMaxRuleCardinality = 1000
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampler     = "always"
	DefaultTracingRatio       = 1.0
	DefaultServiceName        = "rulekit"
)

// Default returns a configuration with every field set to its default.
// LoadConfig decodes YAML on top of it, so boolean fields that default to
// true stay true unless the file sets them explicitly.
func Default() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			StrictValidation: true,
			GenerateIDs:      true,
		},
		Store: StoreConfig{
			SQLite: SQLiteConfig{WALMode: true},
		},
		Audit: AuditConfig{
			Enabled: true,
			SQLite:  SQLiteConfig{WALMode: true},
			Retention: RetentionConfig{
				Days:          DefaultRetentionDays,
				PruneSchedule: DefaultRetentionSchedule,
			},
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{Insecure: true, SampleRatio: DefaultTracingRatio},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any non-boolean fields that have zero
// values. It is idempotent.
func ApplyDefaults(cfg *Config) {
	// Engine
	if cfg.Engine.RegexCacheSize == 0 {
		cfg.Engine.RegexCacheSize = DefaultRegexCacheSize
	}
	if cfg.Engine.SlowRuleThreshold == 0 {
		cfg.Engine.SlowRuleThreshold = DefaultSlowRuleThreshold
	}

	// Store
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultBackend
	}
	applySQLiteDefaults(&cfg.Store.SQLite, DefaultStorePath)

	// Rules
	if cfg.Rules.Debounce == 0 {
		cfg.Rules.Debounce = DefaultRulesDebounce
	}
	if cfg.Rules.Git.Branch == "" {
		cfg.Rules.Git.Branch = DefaultGitBranch
	}
	if cfg.Rules.Git.LocalPath == "" {
		cfg.Rules.Git.LocalPath = DefaultGitLocalPath
	}
	if cfg.Rules.Git.PollInterval == 0 {
		cfg.Rules.Git.PollInterval = DefaultGitPoll
	}
	if cfg.Rules.Git.Timeout == 0 {
		cfg.Rules.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Rules.Git.Auth.Type == "" {
		cfg.Rules.Git.Auth.Type = "none"
	}

	// Audit
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultBackend
	}
	applySQLiteDefaults(&cfg.Audit.SQLite, DefaultAuditPath)
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}

	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.MaxRuleCardinality == 0 {
		cfg.Telemetry.Metrics.MaxRuleCardinality = DefaultMaxRuleCardinality
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}

func applySQLiteDefaults(cfg *SQLiteConfig, path string) {
	if cfg.Driver == "" {
		cfg.Driver = DefaultSQLiteDriver
	}
	if cfg.Path == "" {
		cfg.Path = path
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}
