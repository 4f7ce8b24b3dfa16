package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

// Engine evaluates rule lists against records. It holds no rules itself and
// is safe for concurrent use.
type Engine struct {
	config   *Config
	matcher  *Matcher
	observer Observer
	logger   *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver registers an observer for evaluation events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates a new rule evaluation engine.
func New(config *Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:  config,
		matcher: NewMatcher(config.RegexCacheSize),
		logger:  logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Evaluate runs every enabled rule in list order against rec and returns
// one result per evaluated rule.
//
// Rules outside the category filter, and rules with an exception matching
// the caller, produce no result. Once a critical rule triggers a block, no
// later rule is evaluated; results gathered so far are returned.
func (e *Engine) Evaluate(rec record.Value, list []*rules.Rule, opts ...EvalOption) []EvaluationResult {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	summary := Summary{Allowed: true}
	results := make([]EvaluationResult, 0, len(list))

	for _, rule := range list {
		if rule == nil || !rule.Enabled {
			continue
		}
		if o.category != "" && !strings.EqualFold(rule.Category, o.category) {
			continue
		}
		if o.caller != nil {
			if exc, ok := rule.ExceptionFor(*o.caller); ok {
				summary.Exceptions++
				e.logger.Debug("rule skipped by exception",
					"rule_id", rule.ID,
					"role", exc.Role,
					"scope", exc.Scope,
				)
				if e.observer != nil {
					e.observer.ExceptionApplied(rule, exc)
				}
				continue
			}
		}

		result := e.evaluateRule(rec, rule)
		results = append(results, result)

		summary.Evaluated++
		if result.Matched {
			summary.Matched++
		}
		if e.observer != nil {
			e.observer.RuleEvaluated(result)
		}

		if result.Blocks() {
			summary.Allowed = false
			if rule.Priority.IsCritical() {
				summary.ShortCircuited = true
				e.logger.Debug("critical block, stopping evaluation",
					"rule_id", rule.ID,
					"remaining", len(list)-summary.Evaluated-summary.Exceptions,
				)
				break
			}
		}
	}

	summary.Duration = time.Since(start)
	if e.observer != nil {
		e.observer.EvaluationCompleted(summary)
	}

	return results
}

// IsAllowed evaluates rec and reports whether no block action was triggered.
func (e *Engine) IsAllowed(rec record.Value, list []*rules.Rule, opts ...EvalOption) (bool, []EvaluationResult) {
	results := e.Evaluate(rec, list, opts...)
	return Allowed(results), results
}

// evaluateRule evaluates a single rule.
func (e *Engine) evaluateRule(rec record.Value, rule *rules.Rule) EvaluationResult {
	ruleStart := time.Now()

	result := EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Category: rule.Category,
		Priority: rule.Priority,
	}

	if e.config.EnableTrace {
		result.Matched = e.matcher.matchSet(rec, rule.Conditions, &result.Trace)
	} else {
		result.Matched = e.matcher.matchSet(rec, rule.Conditions, nil)
	}

	if result.Matched {
		result.ActionsTriggered = append([]rules.Action(nil), rule.Actions...)
		result.Reason = rule.Reason()
	}

	result.Duration = time.Since(ruleStart)

	if e.config.EnableTrace {
		e.logger.Debug("rule evaluated",
			"rule_id", rule.ID,
			"matched", result.Matched,
			"actions", len(result.ActionsTriggered),
			"duration", result.Duration,
		)
	}
	if t := e.config.SlowRuleThreshold; t > 0 && result.Duration > t {
		e.logger.Warn("slow rule evaluation",
			"rule_id", rule.ID,
			"duration", result.Duration,
			"threshold", t,
		)
	}

	return result
}
