package skills

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

// Evaluator evaluates a record against the loaded rule set.
// *manager.Manager implements it.
type Evaluator interface {
	IsAllowed(ctx context.Context, rec record.Value, opts ...engine.EvalOption) (bool, []engine.EvaluationResult)
}

// Recorder persists decisions. *audit.Recorder implements it.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) (*audit.Record, error)
}

// Runner evaluates domain records for one skill and optionally records
// each decision to the audit log.
type Runner struct {
	skill     string
	evaluator Evaluator
	recorder  Recorder
	category  string
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder records every decision.
func WithRecorder(r Recorder) Option {
	return func(rn *Runner) {
		rn.recorder = r
	}
}

// WithCategory restricts evaluation to rules of one category.
func WithCategory(category string) Option {
	return func(rn *Runner) {
		rn.category = category
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rn *Runner) {
		if logger != nil {
			rn.logger = logger
		}
	}
}

// NewRunner creates a runner for skill.
func NewRunner(skill string, evaluator Evaluator, opts ...Option) *Runner {
	rn := &Runner{
		skill:     skill,
		evaluator: evaluator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rn)
	}
	rn.logger = rn.logger.With("component", "skill", "skill", skill)
	return rn
}

// Skill returns the skill name recorded on audit entries.
func (rn *Runner) Skill() string {
	return rn.skill
}

// Logger returns the runner's logger.
func (rn *Runner) Logger() *slog.Logger {
	return rn.logger
}

// Run evaluates rec. subject identifies the domain record in the audit log.
// A failure to record is logged and does not affect the decision.
func (rn *Runner) Run(ctx context.Context, subject string, caller rules.Caller, rec record.Value, metadata map[string]string) Decision {
	opts := []engine.EvalOption{engine.WithCaller(caller)}
	if rn.category != "" {
		opts = append(opts, engine.WithCategory(rn.category))
	}

	allowed, results := rn.evaluator.IsAllowed(ctx, rec, opts...)
	d := Decision{Allowed: allowed, Results: results}

	if rn.recorder != nil {
		entry := audit.Entry{
			Skill:    rn.skill,
			Subject:  subject,
			Caller:   caller,
			Results:  results,
			Metadata: metadata,
		}
		if recorded, err := rn.recorder.Record(ctx, entry); err != nil {
			rn.logger.Warn("failed to record decision", "subject", subject, "error", err)
		} else if recorded != nil {
			d.AuditID = recorded.ID
		}
	}
	return d
}

// Decision is the engine outcome for one domain record.
type Decision struct {
	// Allowed is false when any triggered action is a block.
	Allowed bool

	// Results are the per-rule results in evaluation order.
	Results []engine.EvaluationResult

	// AuditID identifies the audit record, when one was written.
	AuditID string
}

// Effects flattens the triggered actions in evaluation order.
func (d Decision) Effects() []Effect {
	var out []Effect
	for _, r := range d.Results {
		if !r.Matched {
			continue
		}
		for _, a := range r.ActionsTriggered {
			out = append(out, Effect{
				Type:       a.Type,
				RuleID:     r.RuleID,
				RuleName:   r.RuleName,
				Priority:   r.Priority,
				Reason:     r.Reason,
				Parameters: a.Parameters,
			})
		}
	}
	return out
}

// MatchedRuleIDs returns the IDs of matched rules in evaluation order.
func (d Decision) MatchedRuleIDs() []string {
	var ids []string
	for _, r := range d.Results {
		if r.Matched {
			ids = append(ids, r.RuleID)
		}
	}
	return ids
}

// Effect is one triggered action together with the rule that produced it.
type Effect struct {
	Type       rules.ActionType
	RuleID     string
	RuleName   string
	Priority   rules.Priority
	Reason     string
	Parameters map[string]any
}

// Param returns a string parameter, or "" when absent.
func (e Effect) Param(key string) string {
	v, ok := e.Parameters[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ParamOr returns a string parameter, or def when absent or empty.
func (e Effect) ParamOr(key, def string) string {
	if s := e.Param(key); s != "" {
		return s
	}
	return def
}

// ParamList returns a list parameter. A single string is a one-element list.
func (e Effect) ParamList(key string) []string {
	switch v := e.Parameters[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	default:
		return nil
	}
}

// NumberParam returns a numeric parameter.
func (e Effect) NumberParam(key string) (float64, bool) {
	return record.FromAny(e.Parameters[key]).AsNumber()
}

// Message returns the "message" parameter, falling back to the rule reason.
func (e Effect) Message() string {
	return e.ParamOr("message", e.Reason)
}

// Alert is a notification request produced by an alert action. Delivery is
// the caller's concern.
type Alert struct {
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
	Channel  string `json:"channel,omitempty"`
	Message  string `json:"message"`
}

// NewAlert builds an alert from an alert effect. Severity defaults to the
// rule priority.
func NewAlert(e Effect) Alert {
	return Alert{
		RuleID:   e.RuleID,
		Severity: e.ParamOr("severity", string(e.Priority)),
		Channel:  e.Param("channel"),
		Message:  e.Message(),
	}
}

// AppendUnique appends non-empty values not already present in dst.
func AppendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
