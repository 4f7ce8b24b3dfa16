package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/rules"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled turns metric recording on. A disabled collector ignores
	// every update but still serves an empty registry.
	Enabled bool

	// Namespace and Subsystem prefix every metric name.
	// Default: "rulekit" and "engine"
	Namespace string
	Subsystem string

	// MaxRuleCardinality bounds the number of distinct rule_id label values.
	// Rules beyond the limit are reported as "other".
	// Default: 1000
	MaxRuleCardinality int
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		Namespace:          "rulekit",
		Subsystem:          "engine",
		MaxRuleCardinality: 1000,
	}
}

// Collector owns the Prometheus registry and all rulekit metrics. It
// implements engine.Observer, so installing it with engine.WithObserver is
// enough to record evaluations.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	rules       *RuleMetrics
	evaluations *EvaluationMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ engine.Observer = (*Collector)(nil)

// NewCollector creates a collector registering its metrics on registry. A nil
// registry gets a fresh one.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "rulekit"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}
	if cfg.MaxRuleCardinality <= 0 {
		cfg.MaxRuleCardinality = 1000
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		rules:              NewRuleMetrics(cfg, registry),
		evaluations:        NewEvaluationMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxRuleCardinality),
	}
}

// RuleEvaluated records one rule result.
func (c *Collector) RuleEvaluated(result engine.EvaluationResult) {
	if !c.config.Enabled {
		return
	}

	ruleID := c.ruleLabel(result.RuleID)
	c.rules.RecordEvaluation(ruleID, result.Matched, result.Duration)
	for _, a := range result.ActionsTriggered {
		c.rules.RecordAction(ruleID, string(a.Type))
	}
}

// ExceptionApplied records a rule skipped for its caller.
func (c *Collector) ExceptionApplied(rule *rules.Rule, exception rules.Exception) {
	if !c.config.Enabled {
		return
	}
	c.rules.RecordException(c.ruleLabel(rule.ID))
}

// EvaluationCompleted records one Evaluate call.
func (c *Collector) EvaluationCompleted(summary engine.Summary) {
	if !c.config.Enabled {
		return
	}
	c.evaluations.RecordEvaluation(summary.Allowed, summary.ShortCircuited, summary.Duration)
}

// SetRulesLoaded reports the number of enabled rules in the active snapshot.
func (c *Collector) SetRulesLoaded(n int) {
	if !c.config.Enabled {
		return
	}
	c.evaluations.SetRulesLoaded(n)
}

// RecordReload counts a rule reload from a source.
func (c *Collector) RecordReload(err error) {
	if !c.config.Enabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.evaluations.RecordReload(status)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ruleLabel(ruleID string) string {
	if c.cardinalityLimiter.Allow(ruleID) {
		return ruleID
	}
	return "other"
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
