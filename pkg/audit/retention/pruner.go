package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"aiemployee/rulekit/pkg/audit"
)

// Config contains configuration for audit retention.
type Config struct {
	// RetentionDays is the number of days to keep audit records.
	// 0 keeps records forever.
	RetentionDays int

	// PruneSchedule is a standard five-field cron expression.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables scheduling.
	PruneSchedule string

	// MaxRecords caps the number of stored records; the oldest are deleted
	// first. 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Validate checks the retention configuration.
func (c *Config) Validate() error {
	if c.RetentionDays < 0 {
		return errors.New("retention_days cannot be negative")
	}
	if c.MaxRecords < 0 {
		return errors.New("max_records cannot be negative")
	}
	if c.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
			return fmt.Errorf("invalid prune schedule %q: %w", c.PruneSchedule, err)
		}
	}
	return nil
}

// Pruner deletes audit records that fall outside the retention policy.
type Pruner struct {
	storage audit.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage audit.Storage, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "audit.retention"),
		now:     time.Now,
	}
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no audit records pruned")
	}
	return total, nil
}

// Cutoff returns the time before which records are expired, and false when
// age-based retention is disabled.
func (p *Pruner) Cutoff() (time.Time, bool) {
	if p.config.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return p.now().AddDate(0, 0, -p.config.RetentionDays), true
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff, _ := p.Cutoff()
	// EndTime is inclusive; step back so records exactly at the cutoff stay.
	end := cutoff.Add(-time.Nanosecond)

	deleted, err := p.storage.Delete(ctx, &audit.Query{EndTime: &end})
	if err != nil {
		return 0, &audit.PruneError{Cutoff: cutoff, Cause: err}
	}

	p.logger.Debug("pruned audit records by age",
		"deleted_count", deleted,
		"cutoff_time", cutoff,
	)
	return deleted, nil
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	// Records come back newest first; the one at MaxRecords is the newest
	// record that has to go.
	oldest, err := p.storage.Query(ctx, &audit.Query{
		Offset: int(p.config.MaxRecords),
		Limit:  1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	cutoff := oldest[0].Timestamp
	deleted, err := p.storage.Delete(ctx, &audit.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	p.logger.Debug("pruned audit records by count",
		"deleted_count", deleted,
		"max_records", p.config.MaxRecords,
	)
	return deleted, nil
}
