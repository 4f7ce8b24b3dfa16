package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"aiemployee/rulekit/pkg/source"
	"aiemployee/rulekit/pkg/store"
	"aiemployee/rulekit/pkg/telemetry/logging"
	"aiemployee/rulekit/pkg/telemetry/tracing"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "server.listen_address".
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateBackend("store", cfg.Store.Backend, &cfg.Store.SQLite)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.RegexCacheSize < 0 {
		errs = append(errs, FieldError{"engine.regex_cache_size", "must not be negative"})
	}
	if cfg.SlowRuleThreshold < 0 {
		errs = append(errs, FieldError{"engine.slow_rule_threshold", "must not be negative"})
	}
	return errs
}

func validateBackend(section, backend string, sqlite *SQLiteConfig) []FieldError {
	switch backend {
	case BackendMemory:
		return nil
	case BackendSQLite:
		return validateSQLite(section+".sqlite", sqlite)
	default:
		return []FieldError{{
			Field:   section + ".backend",
			Message: fmt.Sprintf("unknown backend %q (valid: memory, sqlite)", backend),
		}}
	}
}

func validateSQLite(prefix string, cfg *SQLiteConfig) []FieldError {
	var errs []FieldError

	if cfg.Driver != store.DriverCGO && cfg.Driver != store.DriverPure {
		errs = append(errs, FieldError{
			Field:   prefix + ".driver",
			Message: fmt.Sprintf("unknown driver %q (valid: %s, %s)", cfg.Driver, store.DriverCGO, store.DriverPure),
		})
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{prefix + ".path", "path is required"})
	}
	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{prefix + ".max_open_conns", "must not be negative"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{prefix + ".max_idle_conns", "must not be negative"})
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{prefix + ".max_idle_conns", "must not exceed max_open_conns"})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{prefix + ".busy_timeout", "must not be negative"})
	}
	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError
	if cfg.Watch && cfg.Path == "" {
		errs = append(errs, FieldError{"rules.path", "path is required when watch is enabled"})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{"rules.debounce", "must not be negative"})
	}

	git := &cfg.Git
	if git.Repository == "" {
		return errs
	}
	if cfg.Path != "" {
		errs = append(errs, FieldError{"rules.git.repository", "cannot be combined with rules.path"})
	}
	if git.Depth < 0 {
		errs = append(errs, FieldError{"rules.git.depth", "must not be negative"})
	}
	if git.PollInterval < 0 {
		errs = append(errs, FieldError{"rules.git.poll_interval", "must not be negative"})
	}
	if git.Timeout < 0 {
		errs = append(errs, FieldError{"rules.git.timeout", "must not be negative"})
	}
	switch git.Auth.Type {
	case source.GitAuthNone, "":
	case source.GitAuthToken:
		if git.Auth.Token == "" {
			errs = append(errs, FieldError{"rules.git.auth.token", "required for token auth"})
		}
	case source.GitAuthBasic:
		if git.Auth.Username == "" {
			errs = append(errs, FieldError{"rules.git.auth.username", "required for basic auth"})
		}
	case source.GitAuthSSH:
		if git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{"rules.git.auth.ssh_key_path", "required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{"rules.git.auth.type", fmt.Sprintf("unknown auth type %q (valid: none, token, basic, ssh)", git.Auth.Type)})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	errs := validateBackend("audit", cfg.Backend, &cfg.SQLite)
	if cfg.AsyncBuffer < 0 {
		errs = append(errs, FieldError{"audit.async_buffer", "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"audit.write_timeout", "must not be negative"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{"audit.retention.days", "must not be negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{"audit.retention.max_records", "must not be negative"})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	timeouts := []struct {
		field string
		value int64
	}{
		{"server.read_timeout", int64(cfg.ReadTimeout)},
		{"server.write_timeout", int64(cfg.WriteTimeout)},
		{"server.idle_timeout", int64(cfg.IdleTimeout)},
		{"server.request_timeout", int64(cfg.RequestTimeout)},
		{"server.shutdown_timeout", int64(cfg.ShutdownTimeout)},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			errs = append(errs, FieldError{t.field, "must not be negative"})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{"telemetry.logging.level", err.Error()})
	}
	if _, err := logging.ParseFormat(cfg.Logging.Format); err != nil {
		errs = append(errs, FieldError{"telemetry.logging.format", err.Error()})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "path must start with /"})
	}
	if cfg.Metrics.MaxRuleCardinality < 0 {
		errs = append(errs, FieldError{"telemetry.metrics.max_rule_cardinality", "must not be negative"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{"telemetry.tracing.endpoint", "endpoint is required when tracing is enabled"})
		}
		if err := tracing.ValidateSampler(cfg.Tracing.Sampler, cfg.Tracing.SampleRatio); err != nil {
			errs = append(errs, FieldError{"telemetry.tracing.sampler", err.Error()})
		}
	}
	return errs
}
