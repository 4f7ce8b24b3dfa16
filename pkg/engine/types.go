package engine

import (
	"time"

	"aiemployee/rulekit/pkg/rules"
)

// EvaluationResult is the outcome of evaluating one rule against a record.
type EvaluationResult struct {
	// RuleID identifies the evaluated rule.
	RuleID string `json:"rule_id"`

	// RuleName is the human-readable rule name.
	RuleName string `json:"rule_name"`

	// Category is the rule category, if any.
	Category string `json:"category,omitempty"`

	// Priority is the rule's severity tier.
	Priority rules.Priority `json:"priority"`

	// Matched reports whether the rule's condition set matched.
	Matched bool `json:"matched"`

	// ActionsTriggered holds the rule's actions when it matched, and is
	// empty otherwise. Parameter maps are shared with the rule and must not
	// be modified.
	ActionsTriggered []rules.Action `json:"actions_triggered,omitempty"`

	// Reason explains a match: the rule description, or its name when the
	// description is empty.
	Reason string `json:"reason,omitempty"`

	// Duration is the time spent evaluating the rule.
	Duration time.Duration `json:"duration_ns"`

	// Trace contains the per-condition steps when tracing is enabled.
	Trace []ConditionTrace `json:"trace,omitempty"`
}

// Triggered reports whether the result triggered an action of type t.
func (r EvaluationResult) Triggered(t rules.ActionType) bool {
	for _, a := range r.ActionsTriggered {
		if a.Type == t {
			return true
		}
	}
	return false
}

// Blocks reports whether the result triggered a block action.
func (r EvaluationResult) Blocks() bool {
	return r.Triggered(rules.ActionBlock)
}

// Allowed reports whether none of the results triggered a block action.
func Allowed(results []EvaluationResult) bool {
	for _, r := range results {
		if r.Blocks() {
			return false
		}
	}
	return true
}

// Matched returns the results whose rules matched, in evaluation order.
func Matched(results []EvaluationResult) []EvaluationResult {
	var out []EvaluationResult
	for _, r := range results {
		if r.Matched {
			out = append(out, r)
		}
	}
	return out
}

// Summary describes one call to Evaluate.
type Summary struct {
	// Evaluated is the number of rules that produced a result.
	Evaluated int

	// Matched is the number of results whose rule matched.
	Matched int

	// Exceptions is the number of rules skipped because an exception
	// applied to the caller.
	Exceptions int

	// Allowed is false when any result triggered a block action.
	Allowed bool

	// ShortCircuited is true when a critical block stopped evaluation.
	ShortCircuited bool

	// Duration is the total evaluation time.
	Duration time.Duration
}

// Observer receives evaluation events. Implementations must be safe for
// concurrent use.
type Observer interface {
	// RuleEvaluated is called once per result.
	RuleEvaluated(result EvaluationResult)

	// ExceptionApplied is called when a rule is skipped for the caller.
	ExceptionApplied(rule *rules.Rule, exception rules.Exception)

	// EvaluationCompleted is called once per Evaluate call.
	EvaluationCompleted(summary Summary)
}

// EvalOption customizes a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	caller   *rules.Caller
	category string
}

// WithCaller sets the caller context matched against rule exceptions.
func WithCaller(caller rules.Caller) EvalOption {
	return func(o *evalOptions) {
		o.caller = &caller
	}
}

// WithCategory limits evaluation to rules of the given category.
// Categories compare case-insensitively. An empty category means all.
func WithCategory(category string) EvalOption {
	return func(o *evalOptions) {
		o.category = category
	}
}
