package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/audit"
	auditstorage "aiemployee/rulekit/pkg/audit/storage"
	"aiemployee/rulekit/pkg/cli"
	"aiemployee/rulekit/pkg/config"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/manager"
	"aiemployee/rulekit/pkg/store"
	"aiemployee/rulekit/pkg/telemetry/logging"
)

// loadConfig loads --config with environment overrides and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. One-shot commands log as text to
// stderr so stdout carries only command output.
func newLogger(cfg *config.Config, oneShot bool) (*slog.Logger, error) {
	lc := cfg.Telemetry.Logging.ToLogging()
	lc.Writer = os.Stderr
	if oneShot {
		lc.Format = string(logging.FormatText)
		if !verbose {
			lc.Level = "warn"
		}
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return logger, nil
}

// openStore opens the configured rule store.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendSQLite:
		if err := ensureParentDir(cfg.Store.SQLite.Path); err != nil {
			return nil, err
		}
		st, err := store.NewSQLiteStore(cfg.Store.SQLite.ToStore(), logger)
		if err != nil {
			return nil, fmt.Errorf("open rule store: %w", err)
		}
		return st, nil
	default:
		return nil, cli.NewConfigError(cfgFile, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend))
	}
}

// openManager opens the rule store and builds a manager over it. Closing
// the manager closes the store.
func openManager(ctx context.Context, cfg *config.Config, logger *slog.Logger, engineOpts []engine.Option, opts ...manager.Option) (*manager.Manager, error) {
	eng, err := engine.New(cfg.Engine.ToEngine(), logger, engineOpts...)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	m, err := manager.New(ctx, st, eng, cfg.Engine.ToManager(), logger, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return m, nil
}

// openAuditStorage opens the configured audit backend.
func openAuditStorage(cfg *config.Config, logger *slog.Logger) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case config.BackendMemory:
		return auditstorage.NewMemoryStorage(), nil
	case config.BackendSQLite:
		if err := ensureParentDir(cfg.Audit.SQLite.Path); err != nil {
			return nil, err
		}
		st, err := auditstorage.NewSQLiteStorage(cfg.Audit.SQLite.ToStore(), logger)
		if err != nil {
			return nil, fmt.Errorf("open audit storage: %w", err)
		}
		return st, nil
	default:
		return nil, cli.NewConfigError(cfgFile, fmt.Errorf("unsupported audit backend %q", cfg.Audit.Backend))
	}
}

// ensureParentDir creates the directory holding a SQLite database file.
func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printOutput writes data to the command's stdout in the --output format.
func printOutput(cmd *cobra.Command, data any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
