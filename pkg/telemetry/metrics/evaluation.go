package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics tracks whole evaluations and the rule set.
//
// Metrics:
//   - rulekit_engine_evaluations_total: Evaluate calls by outcome
//   - rulekit_engine_evaluation_duration_seconds: Evaluate call duration
//   - rulekit_engine_short_circuits_total: evaluations stopped by a critical block
//   - rulekit_engine_rules_loaded: enabled rules in the active snapshot
//   - rulekit_engine_reloads_total: rule reloads by status
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	shortCircuits      prometheus.Counter
	rulesLoaded        prometheus.Gauge
	reloadsTotal       *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics with registry.
func NewEvaluationMetrics(cfg *Config, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of rule set evaluations by outcome",
			},
			[]string{"allowed"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a rule set evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
			},
		),

		shortCircuits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "short_circuits_total",
				Help:      "Total number of evaluations stopped by a critical block",
			},
		),

		rulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_loaded",
				Help:      "Number of enabled rules in the active snapshot",
			},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reloads_total",
				Help:      "Total number of rule reloads by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.shortCircuits,
		em.rulesLoaded,
		em.reloadsTotal,
	)

	return em
}

// RecordEvaluation records one Evaluate call.
func (em *EvaluationMetrics) RecordEvaluation(allowed, shortCircuited bool, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(strconv.FormatBool(allowed)).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
	if shortCircuited {
		em.shortCircuits.Inc()
	}
}

// SetRulesLoaded sets the rules_loaded gauge.
func (em *EvaluationMetrics) SetRulesLoaded(n int) {
	em.rulesLoaded.Set(float64(n))
}

// RecordReload counts a reload with the given status.
func (em *EvaluationMetrics) RecordReload(status string) {
	em.reloadsTotal.WithLabelValues(status).Inc()
}
