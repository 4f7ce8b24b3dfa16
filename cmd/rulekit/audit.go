package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/audit/retention"
	"aiemployee/rulekit/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the decision audit log",
}

var auditQueryFlags struct {
	skill   string
	subject string
	ruleID  string
	since   time.Duration
	start   string
	end     string
	blocked bool
	allowed bool
	limit   int
	offset  int
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	Long: `Query recorded decisions, newest first.

Examples:
  # Blocked policy-enforcer decisions in the last day
  rulekit audit query --skill policy-enforcer --blocked --since 24h

  # Every decision a rule took part in, as JSON
  rulekit audit query --rule block-guests -o json

  # An explicit time range
  rulekit audit query --start 2026-01-01T00:00:00Z --end 2026-01-31T23:59:59Z`,
	Args: cobra.NoArgs,
	RunE: runAuditQuery,
}

var auditPruneFlags struct {
	days       int
	maxRecords int64
	dryRun     bool
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit records past the retention policy",
	Long: `Apply the configured retention policy once. --days and --max-records
override the configured values for this run.`,
	Args: cobra.NoArgs,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditPruneCmd)

	f := auditQueryCmd.Flags()
	f.StringVar(&auditQueryFlags.skill, "skill", "", "only records from this skill")
	f.StringVar(&auditQueryFlags.subject, "subject", "", "only records about this subject")
	f.StringVar(&auditQueryFlags.ruleID, "rule", "", "only records where this rule matched")
	f.DurationVar(&auditQueryFlags.since, "since", 0, "only records newer than this duration, e.g. 24h")
	f.StringVar(&auditQueryFlags.start, "start", "", "start of the time range (RFC3339)")
	f.StringVar(&auditQueryFlags.end, "end", "", "end of the time range (RFC3339)")
	f.BoolVar(&auditQueryFlags.blocked, "blocked", false, "only blocked decisions")
	f.BoolVar(&auditQueryFlags.allowed, "allowed", false, "only allowed decisions")
	f.IntVar(&auditQueryFlags.limit, "limit", 50, "maximum number of records")
	f.IntVar(&auditQueryFlags.offset, "offset", 0, "records to skip")

	auditPruneCmd.Flags().IntVar(&auditPruneFlags.days, "days", 0, "retention period in days (overrides config)")
	auditPruneCmd.Flags().Int64Var(&auditPruneFlags.maxRecords, "max-records", 0, "maximum records to keep (overrides config)")
	auditPruneCmd.Flags().BoolVar(&auditPruneFlags.dryRun, "dry-run", false, "report what would be deleted")
}

// buildAuditQuery turns the query flags into a storage query.
func buildAuditQuery(now time.Time) (*audit.Query, error) {
	q := &audit.Query{
		Skill:   auditQueryFlags.skill,
		Subject: auditQueryFlags.subject,
		RuleID:  auditQueryFlags.ruleID,
		Limit:   auditQueryFlags.limit,
		Offset:  auditQueryFlags.offset,
	}

	switch {
	case auditQueryFlags.blocked && auditQueryFlags.allowed:
		return nil, errors.New("--blocked and --allowed are mutually exclusive")
	case auditQueryFlags.blocked:
		q.Allowed = new(bool)
	case auditQueryFlags.allowed:
		allowed := true
		q.Allowed = &allowed
	}

	if auditQueryFlags.since > 0 && auditQueryFlags.start != "" {
		return nil, errors.New("--since and --start are mutually exclusive")
	}
	if auditQueryFlags.since > 0 {
		start := now.Add(-auditQueryFlags.since)
		q.StartTime = &start
	}
	if auditQueryFlags.start != "" {
		start, err := time.Parse(time.RFC3339, auditQueryFlags.start)
		if err != nil {
			return nil, fmt.Errorf("invalid --start: %w", err)
		}
		q.StartTime = &start
	}
	if auditQueryFlags.end != "" {
		end, err := time.Parse(time.RFC3339, auditQueryFlags.end)
		if err != nil {
			return nil, fmt.Errorf("invalid --end: %w", err)
		}
		q.EndTime = &end
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, errors.New("--limit and --offset cannot be negative")
	}
	return q, nil
}

// AuditList renders audit records as a table in text mode.
type AuditList []*audit.Record

// WriteText prints one row per record.
func (l AuditList) WriteText(w io.Writer) error {
	table := &cli.Table{Headers: []string{"TIME", "SKILL", "SUBJECT", "DECISION", "MATCHED", "ACTIONS"}}
	for _, r := range l {
		decision := "allowed"
		if r.Blocked() {
			decision = "blocked"
		}
		matched := make([]string, 0, len(r.MatchedRules))
		for _, m := range r.MatchedRules {
			matched = append(matched, m.RuleID)
		}
		table.AddRow(r.Timestamp.Format(time.RFC3339), r.Skill, r.Subject, decision,
			strings.Join(matched, ","), strings.Join(r.Actions, ","))
	}
	return table.WriteText(w)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	q, err := buildAuditQuery(time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	st, err := openAuditStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Query(commandContext(cmd), q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	return printOutput(cmd, AuditList(records))
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	rc := cfg.Audit.Retention.ToRetention()
	rc.PruneSchedule = ""
	if auditPruneFlags.days > 0 {
		rc.RetentionDays = auditPruneFlags.days
	}
	if auditPruneFlags.maxRecords > 0 {
		rc.MaxRecords = auditPruneFlags.maxRecords
	}

	st, err := openAuditStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	pruner := retention.NewPruner(st, rc, logger)

	if auditPruneFlags.dryRun {
		cutoff, ok := pruner.Cutoff()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "age-based retention disabled")
			return nil
		}
		n, err := st.Count(ctx, &audit.Query{EndTime: &cutoff})
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "would delete %d record(s) older than %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %d record(s)\n", deleted)
	return nil
}
