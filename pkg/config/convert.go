package config

import (
	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/audit/retention"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/manager"
	"aiemployee/rulekit/pkg/source"
	"aiemployee/rulekit/pkg/store"
	"aiemployee/rulekit/pkg/telemetry/logging"
	"aiemployee/rulekit/pkg/telemetry/metrics"
	"aiemployee/rulekit/pkg/telemetry/tracing"
)

// ToEngine returns the engine configuration.
func (c EngineConfig) ToEngine() *engine.Config {
	return engine.DefaultConfig().
		WithTrace(c.Trace).
		WithRegexCacheSize(c.RegexCacheSize).
		WithSlowRuleThreshold(c.SlowRuleThreshold)
}

// ToManager returns the manager configuration.
func (c EngineConfig) ToManager() *manager.Config {
	return &manager.Config{
		StrictValidation: c.StrictValidation,
		GenerateIDs:      c.GenerateIDs,
	}
}

// ToStore returns the store package's SQLite configuration.
func (c SQLiteConfig) ToStore() *store.SQLiteConfig {
	return &store.SQLiteConfig{
		Driver:       c.Driver,
		Path:         c.Path,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
		WALMode:      c.WALMode,
		BusyTimeout:  c.BusyTimeout,
	}
}

// ToWatcher returns the file watcher configuration.
func (c RulesConfig) ToWatcher() *source.WatcherConfig {
	cfg := source.DefaultWatcherConfig(c.Path)
	cfg.DebounceInterval = c.Debounce
	return cfg
}

// ToGit returns the Git rule source configuration.
func (c GitRulesConfig) ToGit() *source.GitConfig {
	return &source.GitConfig{
		Repository: c.Repository,
		Branch:     c.Branch,
		Path:       c.Path,
		LocalPath:  c.LocalPath,
		Depth:      c.Depth,
		Timeout:    c.Timeout,
		Auth: source.GitAuth{
			Type:             c.Auth.Type,
			Username:         c.Auth.Username,
			Password:         c.Auth.Password,
			Token:            c.Auth.Token,
			SSHKeyPath:       c.Auth.SSHKeyPath,
			SSHKeyPassphrase: c.Auth.SSHKeyPassphrase,
		},
	}
}

// ToRecorder returns the audit recorder configuration.
func (c AuditConfig) ToRecorder() *audit.RecorderConfig {
	return &audit.RecorderConfig{
		Enabled:      c.Enabled,
		AsyncBuffer:  c.AsyncBuffer,
		WriteTimeout: c.WriteTimeout,
	}
}

// ToRetention returns the audit retention configuration.
func (c RetentionConfig) ToRetention() *retention.Config {
	return &retention.Config{
		RetentionDays: c.Days,
		PruneSchedule: c.PruneSchedule,
		MaxRecords:    c.MaxRecords,
	}
}

// ToLogging returns the logger configuration.
func (c LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:     c.Level,
		Format:    c.Format,
		AddSource: c.AddSource,
	}
}

// ToMetrics returns the metrics collector configuration.
func (c MetricsConfig) ToMetrics() *metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.Namespace = c.Namespace
	cfg.MaxRuleCardinality = c.MaxRuleCardinality
	return cfg
}

// ToTracing returns the tracer configuration, reporting version as the
// service version.
func (c TracingConfig) ToTracing(version string) *tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.ServiceName = c.ServiceName
	cfg.ServiceVersion = version
	cfg.Endpoint = c.Endpoint
	cfg.Insecure = c.Insecure
	cfg.Sampler = c.Sampler
	cfg.SampleRatio = c.SampleRatio
	return cfg
}
