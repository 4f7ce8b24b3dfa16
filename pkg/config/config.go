package config

import "time"

// Config is the root configuration structure for rulekit.
type Config struct {
	// Engine tunes rule evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Store selects where the rule set is persisted.
	Store StoreConfig `yaml:"store"`

	// Rules points at the rule files loaded on startup and, optionally,
	// watched for changes.
	Rules RulesConfig `yaml:"rules"`

	// Audit controls recording of evaluation decisions and their retention.
	Audit AuditConfig `yaml:"audit"`

	// Server contains the HTTP API listener settings.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains rule evaluation settings.
type EngineConfig struct {
	// Trace records per-condition steps on every evaluation result.
	// Default: false
	Trace bool `yaml:"trace"`

	// RegexCacheSize bounds the compiled pattern cache. 0 disables caching.
	// Default: 512
	RegexCacheSize int `yaml:"regex_cache_size"`

	// SlowRuleThreshold logs rules that take longer to evaluate.
	// Default: 10ms
	SlowRuleThreshold time.Duration `yaml:"slow_rule_threshold"`

	// StrictValidation rejects invalid rules on add, update and sync.
	// Default: true
	StrictValidation bool `yaml:"strict_validation"`

	// GenerateIDs assigns IDs to rules added without one.
	// Default: true
	GenerateIDs bool `yaml:"generate_ids"`
}

// StoreConfig contains rule storage settings.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains settings for a SQLite database.
type SQLiteConfig struct {
	// Driver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RulesConfig contains rule file loading settings.
type RulesConfig struct {
	// Path is a rule file or a directory of *.yaml, *.yml and *.json files.
	// Empty means rules are managed only through the API and CLI.
	Path string `yaml:"path"`

	// Watch reloads rules when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period after the last change before reloading.
	// Default: 250ms
	Debounce time.Duration `yaml:"debounce"`

	// Strict fails the load when any file in a directory is invalid.
	// Default: false
	Strict bool `yaml:"strict"`

	// Git loads rules from a Git repository instead of Path.
	Git GitRulesConfig `yaml:"git"`
}

// GitRulesConfig points at a Git repository of rule files.
type GitRulesConfig struct {
	// Repository is the clone URL. Empty disables the Git source.
	Repository string `yaml:"repository"`

	// Branch to follow.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the rule file or directory inside the repository.
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; 0 clones everything.
	Depth int `yaml:"depth"`

	// PollInterval is how often the repository is pulled. 0 disables
	// polling after the initial load.
	// Default: 1m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig holds Git credentials. Type is none, token, basic or ssh.
type GitAuthConfig struct {
	Type             string `yaml:"type"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Token            string `yaml:"token"`
	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// AuditConfig contains audit trail settings.
type AuditConfig struct {
	// Enabled records every evaluation made through the API.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// AsyncBuffer is the size of the recorder's write queue.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Retention controls pruning of old records.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains audit retention settings.
type RetentionConfig struct {
	// Days is how long records are kept. 0 keeps them forever.
	// Default: 90
	Days int `yaml:"days"`

	// PruneSchedule is a five-field cron expression. Empty disables
	// scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// MaxRecords caps the number of stored records. 0 means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	// ListenAddress is the "host:port" to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// RequestTimeout bounds handler execution.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns on metric collection and the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "rulekit"
	Namespace string `yaml:"namespace"`

	// MaxRuleCardinality bounds the distinct rule_id label values.
	// Default: 1000
	MaxRuleCardinality int `yaml:"max_rule_cardinality"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled exports spans over OTLP gRPC.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service.name resource attribute.
	// Default: "rulekit"
	ServiceName string `yaml:"service_name"`
}
