package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Pruner on its cron schedule. A prune still running when
// the next tick fires makes that tick a no-op.
type Scheduler struct {
	pruner *Pruner
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
}

// NewScheduler creates a scheduler for pruner.
func NewScheduler(pruner *Pruner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.scheduler")
	return &Scheduler{
		pruner: pruner,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
	}
}

// Start registers the pruner's PruneSchedule. An empty schedule leaves the
// scheduler stopped. Cancelling ctx stops it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expr := s.pruner.config.PruneSchedule
	if expr == "" {
		s.logger.Info("prune schedule not configured, scheduler disabled")
		return nil
	}
	if s.running {
		return nil
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	s.entry = s.cron.Schedule(schedule, cron.FuncJob(func() {
		deleted, err := s.pruner.Prune(ctx)
		if err != nil {
			s.logger.Error("scheduled prune failed", "error", err)
			return
		}
		s.logger.Debug("scheduled prune finished", "deleted", deleted)
	}))
	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", expr,
		"retention_days", s.pruner.config.RetentionDays,
		"max_records", s.pruner.config.MaxRecords,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for an in-flight prune.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entry)
	s.running = false
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether a schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next prune time, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
