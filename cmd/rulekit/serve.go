package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/audit/retention"
	"aiemployee/rulekit/pkg/cli"
	"aiemployee/rulekit/pkg/config"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/manager"
	"aiemployee/rulekit/pkg/server"
	"aiemployee/rulekit/pkg/source"
	"aiemployee/rulekit/pkg/telemetry/health"
	"aiemployee/rulekit/pkg/telemetry/logging"
	"aiemployee/rulekit/pkg/telemetry/metrics"
	"aiemployee/rulekit/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP management API",
	Long: `Run the rule evaluation and management API.

On start the server loads rule files from rules.path into the store, and
with rules.watch reloads them whenever they change. Decisions made through
/v1/evaluate are written to the audit log when audit is enabled, and the
audit log is pruned on the configured schedule.

Examples:
  # Start with defaults
  rulekit serve

  # Start with a config file, overriding the listen address
  rulekit serve --config /etc/rulekit/rulekit.yaml --listen 0.0.0.0:8080

  # Validate the configuration without starting
  rulekit serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		if _, err := logging.ParseLevel(serveFlags.logLevel); err != nil {
			return cli.NewConfigError(cfgFile, err)
		}
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// serve wires every component from cfg and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tracer, err := tracing.Setup(ctx, cfg.Telemetry.Tracing.ToTracing(Version))
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(cfg.Telemetry.Metrics.ToMetrics(), nil)

	m, err := openManager(ctx, cfg, logger,
		[]engine.Option{engine.WithObserver(collector)},
		manager.WithTracer(tracer.Tracer()),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("rules", func(ctx context.Context) error {
		if m.LoadedAt().IsZero() {
			return errors.New("rule snapshot not loaded")
		}
		return nil
	})

	switch {
	case cfg.Rules.Path != "":
		src := source.NewFileSource(cfg.Rules.Path, cfg.Rules.Strict, logger)
		if err := syncRules(ctx, m, src, cfg.Rules.Path, collector, logger); err != nil {
			return err
		}
		if cfg.Rules.Watch {
			stopWatch, err := watchRules(ctx, m, src, cfg, collector, logger)
			if err != nil {
				return err
			}
			defer stopWatch()
		}
	case cfg.Rules.Git.Repository != "":
		src, err := source.NewGitSource(cfg.Rules.Git.ToGit(), cfg.Rules.Strict, logger)
		if err != nil {
			return fmt.Errorf("git rule source: %w", err)
		}
		if err := syncRules(ctx, m, src, cfg.Rules.Git.Repository, collector, logger); err != nil {
			return err
		}
		if cfg.Rules.Git.PollInterval > 0 {
			go pollRules(ctx, m, src, cfg, collector, logger)
		}
	}
	collector.SetRulesLoaded(len(m.Rules()))

	deps := server.Deps{
		Manager: m,
		Health:  checker,
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = collector.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	if cfg.Audit.Enabled {
		st, err := openAuditStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		recorder := audit.NewRecorder(st, cfg.Audit.ToRecorder(), logger)
		defer recorder.Close()
		deps.Recorder = recorder
		deps.AuditStorage = st

		checker.RegisterCheck("audit_storage", func(ctx context.Context) error {
			_, err := st.Count(ctx, &audit.Query{Limit: 1})
			return err
		})

		scheduler := retention.NewScheduler(retention.NewPruner(st, cfg.Audit.Retention.ToRetention(), logger), logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("failed to start audit retention scheduler", "error", err)
		} else if scheduler.IsRunning() {
			defer scheduler.Stop()
			logger.Debug("audit retention scheduler started", "next_run", scheduler.NextRun())
		}
	}

	srv, err := server.New(cfg.Server, deps, logger)
	if err != nil {
		return err
	}

	logger.Info("rulekit ready",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"rules", len(m.Rules()),
		"audit", cfg.Audit.Enabled,
		"tracing", tracer.Enabled(),
	)
	return srv.Start(ctx)
}

// syncRules loads the rules from src into the store.
func syncRules(ctx context.Context, m *manager.Manager, src manager.RuleSource, origin string, collector *metrics.Collector, logger *slog.Logger) error {
	res, err := m.Sync(ctx, src)
	collector.RecordReload(err)
	if err != nil {
		return fmt.Errorf("load rules from %s: %w", origin, err)
	}
	collector.SetRulesLoaded(len(m.Rules()))
	logger.Info("rules loaded",
		"source", origin,
		"added", res.Added,
		"updated", res.Updated,
		"rejected", res.Rejected,
	)
	return nil
}

// watchRules reloads rule files on change until ctx is cancelled. The
// returned function stops the watcher.
func watchRules(ctx context.Context, m *manager.Manager, src *source.FileSource, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (func(), error) {
	w, err := source.NewWatcher(cfg.Rules.ToWatcher(), logger)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", cfg.Rules.Path, err)
	}

	go func() {
		err := w.Watch(ctx, func(ctx context.Context) error {
			return syncRules(ctx, m, src, src.Path(), collector, logger)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("rule watcher stopped", "error", err)
		}
	}()

	return func() {
		if err := w.Stop(); err != nil {
			logger.Warn("failed to stop rule watcher", "error", err)
		}
	}, nil
}

// pollRules pulls the rule repository every poll interval until ctx is
// cancelled. Failed pulls keep the current rules.
func pollRules(ctx context.Context, m *manager.Manager, src *source.GitSource, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.Rules.Git.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := syncRules(ctx, m, src, cfg.Rules.Git.Repository, collector, logger); err != nil {
				logger.Warn("rule repository poll failed", "error", err)
				continue
			}
			if c, ok := src.Commit(); ok {
				logger.Debug("rule repository synced", "commit", c.SHA, "author", c.Author)
			}
		}
	}
}
