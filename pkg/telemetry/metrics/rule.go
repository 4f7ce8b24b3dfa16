package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks per-rule evaluation metrics.
//
// Metrics:
//   - rulekit_engine_rule_evaluations_total: evaluations by rule and result
//   - rulekit_engine_rule_evaluation_duration_seconds: per-rule evaluation time
//   - rulekit_engine_rule_actions_total: triggered actions by rule and type
//   - rulekit_engine_rule_exceptions_total: rules skipped by an exception
type RuleMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	actionsTotal       *prometheus.CounterVec
	exceptionsTotal    *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with registry.
func NewRuleMetrics(cfg *Config, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations by result (hit or miss)",
			},
			[]string{"rule_id", "result"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of a single rule evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"rule_id"},
		),

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_actions_total",
				Help:      "Total number of triggered actions by rule and action type",
			},
			[]string{"rule_id", "action"},
		),

		exceptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_exceptions_total",
				Help:      "Total number of rules skipped because an exception matched the caller",
			},
			[]string{"rule_id"},
		),
	}

	registry.MustRegister(
		rm.evaluationsTotal,
		rm.evaluationDuration,
		rm.actionsTotal,
		rm.exceptionsTotal,
	)

	return rm
}

// RecordEvaluation records one rule result.
func (rm *RuleMetrics) RecordEvaluation(ruleID string, matched bool, duration time.Duration) {
	result := "miss"
	if matched {
		result = "hit"
	}
	rm.evaluationsTotal.WithLabelValues(ruleID, result).Inc()
	rm.evaluationDuration.WithLabelValues(ruleID).Observe(duration.Seconds())
}

// RecordAction records one triggered action.
func (rm *RuleMetrics) RecordAction(ruleID, action string) {
	rm.actionsTotal.WithLabelValues(ruleID, action).Inc()
}

// RecordException records a rule skipped for its caller.
func (rm *RuleMetrics) RecordException(ruleID string) {
	rm.exceptionsTotal.WithLabelValues(ruleID).Inc()
}
