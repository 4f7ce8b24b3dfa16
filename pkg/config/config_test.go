package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rulekit.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Engine.StrictValidation || !cfg.Engine.GenerateIDs {
		t.Error("engine boolean defaults not applied")
	}
	if cfg.Store.SQLite.Path != DefaultStorePath || cfg.Audit.SQLite.Path != DefaultAuditPath {
		t.Errorf("sqlite paths = %q, %q", cfg.Store.SQLite.Path, cfg.Audit.SQLite.Path)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Retention.Days != DefaultRetentionDays {
		t.Errorf("audit defaults = %+v", cfg.Audit)
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("tracing enabled by default")
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)

	if *cfg != first {
		t.Error("second ApplyDefaults changed the configuration")
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  trace: true
  regex_cache_size: 64
store:
  backend: memory
rules:
  path: ./rules
  watch: true
  debounce: 1s
audit:
  sqlite:
    driver: sqlite
    wal_mode: false
  retention:
    days: 0
    max_records: 5000
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 5s
telemetry:
  logging:
    level: debug
    format: console
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !cfg.Engine.Trace || cfg.Engine.RegexCacheSize != 64 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if !cfg.Engine.StrictValidation {
		t.Error("unset boolean lost its default")
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("store.backend = %q", cfg.Store.Backend)
	}
	if cfg.Rules.Debounce != time.Second || !cfg.Rules.Watch {
		t.Errorf("rules = %+v", cfg.Rules)
	}
	if cfg.Audit.SQLite.Driver != "sqlite" || cfg.Audit.SQLite.WALMode {
		t.Errorf("audit.sqlite = %+v", cfg.Audit.SQLite)
	}
	if cfg.Audit.Retention.Days != 0 || cfg.Audit.Retention.MaxRecords != 5000 {
		t.Errorf("audit.retention = %+v", cfg.Audit.Retention)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("server.write_timeout = %v, want default", cfg.Server.WriteTimeout)
	}
	if cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("logging.format = %q", cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed yaml", "engine: [", "failed to parse"},
		{"unknown key", "engine:\n  tracing: true\n", "failed to parse"},
		{"invalid backend", "store:\n  backend: postgres\n", "store.backend"},
		{"invalid cron", "audit:\n  retention:\n    prune_schedule: every day\n", "audit.retention.prune_schedule"},
		{"watch without path", "rules:\n  watch: true\n", "rules.path"},
		{"invalid level", "telemetry:\n  logging:\n    level: loud\n", "telemetry.logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Engine.RegexCacheSize = -1
	cfg.Store.SQLite.Driver = "sqlite4"
	cfg.Server.ListenAddress = "nowhere"
	cfg.Telemetry.Tracing.Enabled = true
	cfg.Telemetry.Tracing.Sampler = "ratio"
	cfg.Telemetry.Tracing.SampleRatio = 2

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{
		"engine.regex_cache_size",
		"store.sqlite.driver",
		"server.listen_address",
		"telemetry.tracing.sampler",
	} {
		if !fields[want] {
			t.Errorf("missing error for %s in %v", want, verr.Errors)
		}
	}
	if !strings.Contains(err.Error(), "4 errors") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidate_AuditDisabledSkipsChecks(t *testing.T) {
	cfg := Default()
	cfg.Audit.Enabled = false
	cfg.Audit.Backend = "nope"

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"RULEKIT_SERVER_LISTEN_ADDRESS":       "0.0.0.0:7000",
		"RULEKIT_RULES_WATCH":                 "true",
		"RULEKIT_RULES_PATH":                  "/etc/rulekit/rules",
		"RULEKIT_ENGINE_GENERATE_IDS":         "false",
		"RULEKIT_AUDIT_RETENTION_MAX_RECORDS": "42",
		"RULEKIT_STORE_SQLITE_BUSY_TIMEOUT":   "250ms",
		"RULEKIT_TELEMETRY_TRACING_ENABLED":   "yes please",
		"RULEKIT_ENGINE_REGEX_CACHE_SIZE":     "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	applyEnvOverrides(cfg, lookup)

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if !cfg.Rules.Watch || cfg.Rules.Path != "/etc/rulekit/rules" {
		t.Errorf("rules = %+v", cfg.Rules)
	}
	if cfg.Engine.GenerateIDs {
		t.Error("generate_ids override not applied")
	}
	if cfg.Audit.Retention.MaxRecords != 42 {
		t.Errorf("max_records = %d", cfg.Audit.Retention.MaxRecords)
	}
	if cfg.Store.SQLite.BusyTimeout != 250*time.Millisecond {
		t.Errorf("busy_timeout = %v", cfg.Store.SQLite.BusyTimeout)
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("unparseable boolean was applied")
	}
	if cfg.Engine.RegexCacheSize != DefaultRegexCacheSize {
		t.Error("empty value was applied")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8000\"\n")
	t.Setenv("RULEKIT_SERVER_LISTEN_ADDRESS", "127.0.0.1:9000")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen address = %q, want env value", cfg.Server.ListenAddress)
	}

	t.Setenv("RULEKIT_STORE_BACKEND", "mongo")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Error("invalid override passed validation")
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Engine.Trace = true
	cfg.Rules.Path = "rules"
	cfg.Rules.Debounce = time.Second
	cfg.Audit.Retention.MaxRecords = 10

	if ec := cfg.Engine.ToEngine(); !ec.EnableTrace || ec.RegexCacheSize != DefaultRegexCacheSize {
		t.Errorf("ToEngine() = %+v", ec)
	}
	if err := cfg.Engine.ToEngine().Validate(); err != nil {
		t.Errorf("engine config invalid: %v", err)
	}
	if sc := cfg.Store.SQLite.ToStore(); sc.Path != DefaultStorePath || !sc.WALMode {
		t.Errorf("ToStore() = %+v", sc)
	}
	if wc := cfg.Rules.ToWatcher(); wc.Path != "rules" || wc.DebounceInterval != time.Second || !wc.SkipHidden {
		t.Errorf("ToWatcher() = %+v", wc)
	}
	if rc := cfg.Audit.Retention.ToRetention(); rc.MaxRecords != 10 || rc.RetentionDays != DefaultRetentionDays {
		t.Errorf("ToRetention() = %+v", rc)
	}
	if err := cfg.Audit.Retention.ToRetention().Validate(); err != nil {
		t.Errorf("retention config invalid: %v", err)
	}
	if tc := cfg.Telemetry.Tracing.ToTracing("1.2.3"); tc.ServiceVersion != "1.2.3" || tc.Enabled {
		t.Errorf("ToTracing() = %+v", tc)
	}
	if mc := cfg.Telemetry.Metrics.ToMetrics(); mc.Namespace != "rulekit" || mc.Subsystem != "engine" {
		t.Errorf("ToMetrics() = %+v", mc)
	}
}

func TestValidate_GitRules(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "disabled by default", modify: func(*Config) {}},
		{name: "public repository", modify: func(c *Config) { c.Rules.Git.Repository = "https://example.com/rules.git" }},
		{
			name: "combined with path",
			modify: func(c *Config) {
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Path = "rules"
			},
			field: "rules.git.repository",
		},
		{
			name: "token without token",
			modify: func(c *Config) {
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Git.Auth.Type = "token"
			},
			field: "rules.git.auth.token",
		},
		{
			name: "unknown auth",
			modify: func(c *Config) {
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Git.Auth.Type = "kerberos"
			},
			field: "rules.git.auth.type",
		},
		{
			name: "negative poll",
			modify: func(c *Config) {
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Git.PollInterval = -time.Second
			},
			field: "rules.git.poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if verr.Errors[0].Field != tt.field {
				t.Errorf("field = %s, want %s", verr.Errors[0].Field, tt.field)
			}
		})
	}
}

func TestGitRulesDefaultsAndConverter(t *testing.T) {
	cfg, err := Parse([]byte(`
rules:
  git:
    repository: git@example.com:ops/rules.git
    path: approval
    auth:
      type: ssh
      ssh_key_path: /keys/id_ed25519
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	gc := cfg.Rules.Git.ToGit()
	if gc.Branch != DefaultGitBranch || gc.LocalPath != DefaultGitLocalPath || gc.Timeout != DefaultGitTimeout {
		t.Errorf("ToGit() defaults = %+v", gc)
	}
	if gc.Path != "approval" || gc.Auth.Type != "ssh" || gc.Auth.SSHKeyPath != "/keys/id_ed25519" {
		t.Errorf("ToGit() = %+v", gc)
	}
	if cfg.Rules.Git.PollInterval != DefaultGitPoll {
		t.Errorf("poll interval = %v", cfg.Rules.Git.PollInterval)
	}
}
